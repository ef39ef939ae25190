package notification

import "fmt"

// Alert kinds
const (
	KindConnectionFailed = "connection_failed"
	KindProviderChanges  = "provider_changes"
	KindSyncFailed       = "sync_failed"
)

// Alert is one operator-facing push notification.
type Alert struct {
	Kind  string
	Title string
	Body  string
	Data  map[string]string
}

func ConnectionFailed(connectionID, errorClass, errorMessage string) Alert {
	return Alert{
		Kind:  KindConnectionFailed,
		Title: "Bank connection failed",
		Body:  fmt.Sprintf("Connection %s: %s %s", connectionID, errorClass, errorMessage),
		Data: map[string]string{
			"connection_id": connectionID,
			"error_class":   errorClass,
		},
	}
}

func ProviderChanged(providerCode, changeType string) Alert {
	return Alert{
		Kind:  KindProviderChanges,
		Title: "Provider changed",
		Body:  fmt.Sprintf("Provider %s reported %s", providerCode, changeType),
		Data: map[string]string{
			"provider_code": providerCode,
			"change_type":   changeType,
		},
	}
}

func SyncFailed(identifier string, err error) Alert {
	return Alert{
		Kind:  KindSyncFailed,
		Title: "Sync failed",
		Body:  fmt.Sprintf("Customer %s: %v", identifier, err),
		Data:  map[string]string{"customer": identifier},
	}
}
