package models

import (
	"testing"

	"tgdispatch/pkg/telegram/types"

	"github.com/stretchr/testify/assert"
)

func TestBestDisplayName(t *testing.T) {
	tests := []struct {
		name      string
		recipient Recipient
		want      string
	}{
		{
			name:      "explicit display name wins",
			recipient: Recipient{DisplayName: "The Boss", FirstName: "Alice", LastName: "Smith", Username: "alice"},
			want:      "The Boss",
		},
		{
			name:      "first and last name",
			recipient: Recipient{FirstName: "Alice", LastName: "Smith", Username: "alice"},
			want:      "Alice Smith",
		},
		{
			name:      "first name only",
			recipient: Recipient{FirstName: "Alice", Username: "alice"},
			want:      "Alice",
		},
		{
			name:      "username fallback",
			recipient: Recipient{Username: "alice", TelegramID: "100"},
			want:      "@alice",
		},
		{
			name:      "telegram id fallback",
			recipient: Recipient{TelegramID: "100"},
			want:      "User 100",
		},
		{
			name:      "last name alone does not combine",
			recipient: Recipient{LastName: "Smith", Username: "alice"},
			want:      "@alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.recipient.BestDisplayName())
		})
	}
}

func TestFromTelegramUserRecomputesDisplayName(t *testing.T) {
	r := Recipient{DisplayName: "stale name"}
	r.FromTelegramUser(&types.User{ID: 100, FirstName: "Alice", LastName: "Smith", Username: "alice"})

	assert.Equal(t, "100", r.TelegramID)
	assert.Equal(t, "Alice Smith", r.DisplayName)
}

func TestFromTelegramChat(t *testing.T) {
	r := Recipient{}
	r.FromTelegramChat(&types.Chat{ID: 200, Type: types.ChatTypePrivate, Username: "bob"})

	assert.Equal(t, "200", r.TelegramID)
	assert.Equal(t, "@bob", r.DisplayName)
}
