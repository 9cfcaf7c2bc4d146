package discord

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/dialflow/floorwatch/internal/notify"
)

// fakeSession records embed sends and can fail a set number of times.
type fakeSession struct {
	calls     int
	failTimes int
	err       error
	channel   string
	embed     *discordgo.MessageEmbed
	closed    bool
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.calls++
	f.channel = channelID
	f.embed = embed
	if f.failTimes > 0 {
		f.failTimes--
		return nil, f.err
	}
	return &discordgo.Message{ID: "1"}, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "123"); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := New("tok", ""); err == nil {
		t.Error("expected error for empty channel")
	}
}

func TestSend(t *testing.T) {
	fs := &fakeSession{}
	a := &Adapter{session: fs, channelID: "123"}

	alert := notify.ForcedDisconnect("agent-7", "superseded", time.Now())
	if err := a.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fs.channel != "123" {
		t.Errorf("channel = %q, want 123", fs.channel)
	}
	if fs.embed == nil || fs.embed.Title != alert.Title {
		t.Errorf("embed = %+v", fs.embed)
	}
}

func TestSend_NoRetryOnOtherErrors(t *testing.T) {
	fs := &fakeSession{failTimes: 1, err: fmt.Errorf("missing access")}
	a := &Adapter{session: fs, channelID: "123"}

	if err := a.Send(context.Background(), notify.Alert{Title: "t"}); err == nil {
		t.Fatal("expected error")
	}
	if fs.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", fs.calls)
	}
}

func TestClose(t *testing.T) {
	fs := &fakeSession{}
	a := &Adapter{session: fs, channelID: "123"}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fs.closed {
		t.Error("session not closed")
	}
}

func TestToEmbed_Fields(t *testing.T) {
	embed := toEmbed(notify.Alert{Title: "T", Body: "B", AgentID: "agent-7"})
	if len(embed.Fields) != 1 || embed.Fields[0].Value != "agent-7" {
		t.Errorf("fields = %+v", embed.Fields)
	}
}
