package model

// Recipient is one eligible subscriber for a new-job notification
type Recipient struct {
	UserID   string
	Email    string
	FullName string
}

// NotificationBatch is the unit handed to the notification queue: one new
// job and the recipients resolved at creation time.
type NotificationBatch struct {
	Job        Job
	Recipients []Recipient
}

// RecipientsFromSubscriptions keeps active subscriptions that do not belong
// to excludeUserID.
func RecipientsFromSubscriptions(subs []UserSubscription, excludeUserID string) []Recipient {
	recipients := make([]Recipient, 0, len(subs))
	for _, s := range subs {
		if !s.IsActive || s.UserID == excludeUserID {
			continue
		}
		recipients = append(recipients, Recipient{
			UserID:   s.UserID,
			Email:    s.Email,
			FullName: s.FullName,
		})
	}
	return recipients
}
