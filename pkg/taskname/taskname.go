package taskname

const (
	// Campaign tasks
	CampaignClaimAirdrop = "campaign:claim_airdrop"

	// Notification tasks
	NotificationSend = "notification:send"
)
