package bot

func (b *Bot) commandList() []Command {
	return []Command{
		{Name: "start", Description: "register and show the welcome message", Access: AccessEveryone, Handle: b.cmdStart},
		{Name: "help", Description: "list available commands", Access: AccessEveryone, Handle: b.cmdHelp},
		{Name: "create", Description: "create a new quiz", Usage: "/create", Access: AccessEntitled, Handle: b.cmdCreate},
		{Name: "quiz", Description: "take a random quiz", Access: AccessEveryone, Handle: b.cmdQuiz},
		{Name: "status", Description: "show your points and entitlements", Access: AccessEveryone, Handle: b.cmdStatus},
		{Name: "redeem", Description: "trade points for a creation token", Access: AccessEveryone, Handle: b.cmdRedeem},
		{Name: "stats", Description: "show bot statistics", Access: AccessEveryone, Handle: b.cmdStats},
		{Name: "leaderboard", Description: "show top users", Access: AccessEveryone, Handle: b.cmdLeaderboard},
		{Name: "cancel", Description: "cancel the current operation", Access: AccessEveryone, Handle: b.cmdCancel},

		{Name: "grant", Description: "grant a token or premium", Usage: "/grant <user_id> token|premium [duration]", Access: AccessOwner, Handle: b.cmdGrant},
		{Name: "revoke", Description: "revoke an entitlement", Usage: "/revoke <user_id> token|premium", Access: AccessOwner, Handle: b.cmdRevoke},
		{Name: "addsudo", Description: "add a sudo user", Usage: "/addsudo <user_id>", Access: AccessOwner, Handle: b.cmdAddSudo},
		{Name: "removesudo", Description: "remove a sudo user", Usage: "/removesudo <user_id>", Access: AccessOwner, Handle: b.cmdRemoveSudo},
		{Name: "broadcast", Description: "prepare a broadcast (reply to the message to send)", Access: AccessOwner, Handle: b.cmdBroadcast},
		{Name: "confirm", Description: "confirm the pending broadcast", Access: AccessOwner, Handle: b.cmdConfirm},
	}
}
