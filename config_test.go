package meshchat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateNickname(t *testing.T) {
	valid := []string{"alice", "a", strings.Repeat("x", MaxNicknameLength), "Zoë"}
	for _, nickname := range valid {
		require.NoError(t, ValidateNickname(nickname), nickname)
	}

	invalid := []string{
		"",
		strings.Repeat("x", MaxNicknameLength+1),
		"al ice",
		"al\tice",
		"al\\ice",
		"al\x00ice",
		"al\x1bice",
		"\xff\xfe",
	}
	for _, nickname := range invalid {
		require.Error(t, ValidateNickname(nickname), nickname)
	}
}

func TestConfigDefaults(t *testing.T) {
	requireT := require.New(t)

	config := Config{NodeID: 1, Nickname: "alice"}.withDefaults()
	requireT.Equal(DefaultRoster(), config.Roster)
	requireT.Equal(DefaultMaxOutgoing, config.MaxOutgoing)
	requireT.Equal(DefaultBootstrapInterval, config.BootstrapInterval)
	requireT.Equal(DefaultTopUpInterval, config.TopUpInterval)
	requireT.Equal(DefaultDialPacing, config.DialPacing)
	requireT.EqualValues(DefaultMaxMessageSize, config.MaxMessageSize)
	requireT.NoError(config.Validate())
}

func TestConfigValidate(t *testing.T) {
	requireT := require.New(t)

	requireT.NoError(Config{NodeID: 4, Nickname: "dave"}.Validate())
	requireT.Error(Config{NodeID: 5, Nickname: "eve"}.Validate())
	requireT.Error(Config{NodeID: 1, Nickname: "bad nick"}.Validate())
	requireT.Error(Config{NodeID: 1, Nickname: "alice", MaxOutgoing: -1}.Validate())
	requireT.Error(Config{NodeID: 1, Nickname: "alice", DialPacing: -1}.Validate())
	requireT.Error(Config{
		NodeID:   1,
		Nickname: "alice",
		Roster:   Roster{{ID: 1, Host: "127.0.0.1", Port: 1}, {ID: 1, Host: "127.0.0.1", Port: 2}},
	}.Validate())
}

func TestRoster(t *testing.T) {
	requireT := require.New(t)

	roster := DefaultRoster()
	requireT.NoError(roster.Validate())
	requireT.Error(Roster{}.Validate())

	m, exists := roster.Lookup(2)
	requireT.True(exists)
	requireT.Equal("127.0.0.1:31406", m.Address())

	addr, err := m.Resolve()
	requireT.NoError(err)
	requireT.Equal("127.0.0.1:31406", addr.String())

	_, exists = roster.Lookup(9)
	requireT.False(exists)

	others := roster.Without(2)
	requireT.Len(others, 3)
	_, exists = others.Lookup(2)
	requireT.False(exists)
	requireT.Len(roster, 4)
}
