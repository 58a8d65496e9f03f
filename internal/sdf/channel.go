package sdf

// PPEnd identifies which channel end, if any, may issue protected
// procedure calls to the other.
type PPEnd int

const (
	PPNone PPEnd = iota
	PPEndA
	PPEndB
)

// Channel is a bidirectional notification/IPC link between exactly two
// protection domains. Creating a channel allocates one local end id in
// each endpoint PD's slot id space; destroying it releases both.
type Channel struct {
	a, b             *ProtectionDomain
	aID, bID         uint8
	aNotify, bNotify bool
	pp               PPEnd
}

// ChannelOption customises channel creation.
type ChannelOption func(*channelConfig)

type channelConfig struct {
	aID, bID         *uint8
	aNotify, bNotify bool
	pp               PPEnd
}

// WithEndAID fixes the local id of end A. The id must be unused in PD A's
// slot id space.
func WithEndAID(id uint8) ChannelOption {
	return func(c *channelConfig) { fixed := id; c.aID = &fixed }
}

// WithEndBID fixes the local id of end B.
func WithEndBID(id uint8) ChannelOption {
	return func(c *channelConfig) { fixed := id; c.bID = &fixed }
}

// WithNotifyA sets whether end A may notify end B. Defaults to true.
func WithNotifyA(notify bool) ChannelOption {
	return func(c *channelConfig) { c.aNotify = notify }
}

// WithNotifyB sets whether end B may notify end A. Defaults to true.
func WithNotifyB(notify bool) ChannelOption {
	return func(c *channelConfig) { c.bNotify = notify }
}

// WithPP grants protected procedure calls to one end.
func WithPP(end PPEnd) ChannelOption {
	return func(c *channelConfig) { c.pp = end }
}

// NewChannel creates a channel between two distinct PDs, allocating the
// lowest unused end id on each side unless a fixed id was requested.
// On any failure no id is left allocated.
func NewChannel(a, b *ProtectionDomain, opts ...ChannelOption) (*Channel, error) {
	if a == b {
		return nil, NewInvalidClientError(a.Name(), "channel endpoints must be distinct PDs")
	}

	cfg := channelConfig{aNotify: true, bNotify: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	aID, err := a.allocateSlot(cfg.aID)
	if err != nil {
		return nil, err
	}
	bID, err := b.allocateSlot(cfg.bID)
	if err != nil {
		a.releaseSlot(aID)
		return nil, err
	}

	return &Channel{
		a: a, b: b,
		aID: aID, bID: bID,
		aNotify: cfg.aNotify, bNotify: cfg.bNotify,
		pp: cfg.pp,
	}, nil
}

// EndA returns the endpoint PD of end A.
func (ch *Channel) EndA() *ProtectionDomain { return ch.a }

// EndB returns the endpoint PD of end B.
func (ch *Channel) EndB() *ProtectionDomain { return ch.b }

// EndAID returns the allocated local id of end A.
func (ch *Channel) EndAID() uint8 { return ch.aID }

// EndBID returns the allocated local id of end B.
func (ch *Channel) EndBID() uint8 { return ch.bID }

// Destroy releases both end ids back to their PDs' id pools. The channel
// must not be used afterwards.
func (ch *Channel) Destroy() {
	ch.a.releaseSlot(ch.aID)
	ch.b.releaseSlot(ch.bID)
}
