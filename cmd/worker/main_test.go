package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestAppGraphIsValid(t *testing.T) {
	require.NoError(t, fx.ValidateApp(appOptions()...))
}
