package mobile

// Notification channel.
const (
	ChannelID          = "trending_content"
	ChannelName        = "Trending Content"
	ChannelDescription = "Notifications about trending content"
)

// Intent extras read by the host application to deep-link.
const (
	ExtraContentType    = "NOTIFICATION_CONTENT_TYPE"
	ExtraContentID      = "NOTIFICATION_CONTENT_ID"
	ExtraShouldNavigate = "SHOULD_NAVIGATE"
)

// IntentFlags controls how the host activity is launched.
type IntentFlags uint32

// Flags.
const (
	FlagClearTop IntentFlags = 1 << iota
	FlagSingleTop
)

// Has reports whether all bits of flag are set.
func (f IntentFlags) Has(flag IntentFlags) bool {
	return f&flag == flag
}

// Importance of a notification channel.
type Importance int

// Importance levels.
const (
	ImportanceDefault Importance = 3
	ImportanceHigh    Importance = 4
)

// Channel describes a notification channel.
type Channel struct {
	ID          string
	Name        string
	Description string
	Importance  Importance
}

// Intent is the activation target of a notification.
type Intent struct {
	RequestCode Identity          `json:"requestCode"`
	Extras      map[string]string `json:"extras"`
	Flags       IntentFlags       `json:"flags"`
}

// LocalNotification is what the device displays.
type LocalNotification struct {
	ID         Identity `json:"id"`
	ChannelID  string   `json:"channelId"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	SubText    string   `json:"subText,omitempty"`
	AutoCancel bool     `json:"autoCancel"`
	Intent     Intent   `json:"intent"`
}

func trendingChannel() Channel {
	return Channel{
		ID:          ChannelID,
		Name:        ChannelName,
		Description: ChannelDescription,
		Importance:  ImportanceHigh,
	}
}
