package radius

import (
	"context"
	"net"
	"testing"
	"time"

	"strand/internal/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2866"
	"layeh.com/radius/rfc3162"
	"layeh.com/radius/rfc4818"
)

var testSession = lifecycle.Session{
	SubscriberID:  "sub-1",
	Username:      "user1@isp",
	AcctSessionID: "acct-42",
	NASAddress:    "192.0.2.1",
}

func TestPushPrefixPacket(t *testing.T) {
	var sent *radius.Packet
	var sentTo string

	c := NewCoAClient("s3cret", 3799, time.Second)
	c.exchange = func(_ context.Context, p *radius.Packet, addr string) (*radius.Packet, error) {
		sent = p
		sentTo = addr
		return p.Response(radius.CodeCoAACK), nil
	}

	err := c.PushPrefix(context.Background(), testSession, "2001:db8:5::/64")
	require.NoError(t, err)
	require.NotNil(t, sent)

	assert.Equal(t, "192.0.2.1:3799", sentTo)
	assert.Equal(t, radius.CodeCoARequest, sent.Code)
	assert.Equal(t, "user1@isp", rfc2865.UserName_GetString(sent))
	assert.Equal(t, "acct-42", rfc2866.AcctSessionID_GetString(sent))

	_, want, _ := net.ParseCIDR("2001:db8:5::/64")
	assert.Equal(t, want.String(), rfc4818.DelegatedIPv6Prefix_Get(sent).String())
	assert.Equal(t, want.String(), rfc3162.FramedIPv6Prefix_Get(sent).String())
}

func TestPushPrefixNAK(t *testing.T) {
	c := NewCoAClient("s3cret", 3799, time.Second)
	c.exchange = func(_ context.Context, p *radius.Packet, _ string) (*radius.Packet, error) {
		return p.Response(radius.CodeCoANAK), nil
	}
	err := c.PushPrefix(context.Background(), testSession, "2001:db8:5::/64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "192.0.2.1")
}

func TestPushPrefixBadCIDR(t *testing.T) {
	c := NewCoAClient("s3cret", 3799, time.Second)
	err := c.PushPrefix(context.Background(), testSession, "not-a-prefix")
	assert.Error(t, err)
}

func TestDisconnectPacket(t *testing.T) {
	var sent *radius.Packet
	c := NewCoAClient("s3cret", 3799, time.Second)
	c.exchange = func(_ context.Context, p *radius.Packet, _ string) (*radius.Packet, error) {
		sent = p
		return p.Response(radius.CodeDisconnectACK), nil
	}

	require.NoError(t, c.Disconnect(context.Background(), testSession))
	require.NotNil(t, sent)
	assert.Equal(t, radius.CodeDisconnectRequest, sent.Code)
	assert.Equal(t, "user1@isp", rfc2865.UserName_GetString(sent))
}

// Живой обмен через UDP с radius.PacketServer.
func TestDisconnectOverUDP(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	server := radius.PacketServer{
		Handler: radius.HandlerFunc(func(w radius.ResponseWriter, r *radius.Request) {
			assert.Equal(t, radius.CodeDisconnectRequest, r.Code)
			assert.Equal(t, "user1@isp", rfc2865.UserName_GetString(r.Packet))
			_ = w.Write(r.Response(radius.CodeDisconnectACK))
		}),
		SecretSource: radius.StaticSecretSource([]byte("s3cret")),
	}
	go func() { _ = server.Serve(pc) }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	port := pc.LocalAddr().(*net.UDPAddr).Port
	c := NewCoAClient("s3cret", port, 3*time.Second)
	s := testSession
	s.NASAddress = "127.0.0.1"

	assert.NoError(t, c.Disconnect(context.Background(), s))
}
