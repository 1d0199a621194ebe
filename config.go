package meshchat

import (
	"time"
	"unicode"

	"github.com/pkg/errors"

	"github.com/outofforest/meshchat/wire"
)

// Defaults applied to zero config values.
const (
	DefaultMaxOutgoing       = 2
	DefaultBootstrapInterval = 3 * time.Second
	DefaultTopUpInterval     = 10 * time.Second
	DefaultDialPacing        = 500 * time.Millisecond
	DefaultMaxMessageSize    = 4096
)

// MaxNicknameLength is the maximum length of nickname in bytes.
const MaxNicknameLength = 16

// Config is the node configuration.
type Config struct {
	NodeID   wire.NodeID
	Nickname string
	Roster   Roster

	// MaxOutgoing is the degree bound K. Node holds at most K connections in each direction
	// and at most K+1 in total.
	MaxOutgoing int

	// BootstrapInterval is how often the isolated node dials the roster.
	BootstrapInterval time.Duration

	// TopUpInterval is how often the node below K peers dials the roster.
	TopUpInterval time.Duration

	// DialPacing is the delay between requests sent by the bootstrap sweep.
	DialPacing time.Duration

	MaxMessageSize uint64
}

func (c Config) withDefaults() Config {
	if c.Roster == nil {
		c.Roster = DefaultRoster()
	}
	if c.MaxOutgoing == 0 {
		c.MaxOutgoing = DefaultMaxOutgoing
	}
	if c.BootstrapInterval == 0 {
		c.BootstrapInterval = DefaultBootstrapInterval
	}
	if c.TopUpInterval == 0 {
		c.TopUpInterval = DefaultTopUpInterval
	}
	if c.DialPacing == 0 {
		c.DialPacing = DefaultDialPacing
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	return c
}

// Validate verifies the configuration. Zero values are validated as their defaults.
func (c Config) Validate() error {
	c = c.withDefaults()
	if err := c.Roster.Validate(); err != nil {
		return err
	}
	if _, exists := c.Roster.Lookup(c.NodeID); !exists {
		return errors.Errorf("node %s is not in the roster", c.NodeID)
	}
	if err := ValidateNickname(c.Nickname); err != nil {
		return err
	}
	if c.MaxOutgoing < 1 {
		return errors.Errorf("max outgoing connections must be positive, got %d", c.MaxOutgoing)
	}
	if c.BootstrapInterval < 0 || c.TopUpInterval < 0 || c.DialPacing < 0 {
		return errors.New("intervals must not be negative")
	}
	return nil
}

// ValidateNickname checks that nickname is short and contains no whitespace, control characters
// or backslashes.
func ValidateNickname(nickname string) error {
	switch {
	case nickname == "":
		return errors.New("nickname is empty")
	case len(nickname) > MaxNicknameLength:
		return errors.Errorf("nickname is longer than %d bytes", MaxNicknameLength)
	}
	for _, r := range nickname {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '\\' || r == unicode.ReplacementChar {
			return errors.Errorf("nickname contains forbidden character %q", r)
		}
	}
	return nil
}
