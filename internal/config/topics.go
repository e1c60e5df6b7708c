package config

const (
	// TopicNotifyEmail is the NSQ topic for outbound email notifications.
	TopicNotifyEmail = "notify.email"

	// TopicNotifyGMB is the NSQ topic for Google My Business posting reminders.
	TopicNotifyGMB = "notify.gmb"

	// TopicNotifySMS is the NSQ topic for SMS notifications.
	TopicNotifySMS = "notify.sms"
)
