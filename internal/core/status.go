package core

// ConnectionStatus tells the rendering layer where the current data came from.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusCached       ConnectionStatus = "cached"
	StatusDemo         ConnectionStatus = "demo"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// String implements fmt.Stringer
func (s ConnectionStatus) String() string {
	return string(s)
}

// IsLive returns true only for data fetched from the configured source just now.
func (s ConnectionStatus) IsLive() bool {
	return s == StatusConnected
}
