package mqtt

// Topic layout: hearth/notify/{household_id}/{event} for household-scoped
// notification events, hearth/system/status for the service's own
// online/offline state.
const (
	topicPrefix       = "hearth"
	systemStatusTopic = topicPrefix + "/system/status"
)

// Topics builds the topic strings Core publishes to.
type Topics struct{}

// SystemStatus is the retained online/offline status topic, also used for
// the Last Will message.
func (Topics) SystemStatus() string {
	return systemStatusTopic
}

// GrantInvite is the per-household guest invitation event topic.
func (Topics) GrantInvite(householdID string) string {
	return topicPrefix + "/notify/" + householdID + "/grant-invite"
}

// GrantRevoked is the per-household grant revocation event topic, so a guest
// with the app installed learns their access ended.
func (Topics) GrantRevoked(householdID string) string {
	return topicPrefix + "/notify/" + householdID + "/grant-revoked"
}
