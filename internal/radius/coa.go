package radius

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"strand/internal/lifecycle"

	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2866"
	"layeh.com/radius/rfc3162"
	"layeh.com/radius/rfc4818"
)

// CoAClient — CoA-Request / Disconnect-Request по RFC 5176.
// Пакеты шлём на NAS из сессии (порт динамической авторизации из конфига).
// Вызовы best-effort по контракту менеджера: ошибки возвращаем, но решает он.
type CoAClient struct {
	secret  []byte
	port    int
	timeout time.Duration

	// подменяется в тестах
	exchange func(ctx context.Context, p *radius.Packet, addr string) (*radius.Packet, error)
}

func NewCoAClient(secret string, coaPort int, timeout time.Duration) *CoAClient {
	return &CoAClient{
		secret:   []byte(secret),
		port:     coaPort,
		timeout:  timeout,
		exchange: radius.Exchange,
	}
}

// PushPrefix — прислать сессии новый делегированный префикс.
func (c *CoAClient) PushPrefix(ctx context.Context, s lifecycle.Session, cidr string) error {
	_, nw, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("coa: bad prefix %q: %w", cidr, err)
	}
	p := radius.New(radius.CodeCoARequest, c.secret)
	identify(p, s)
	// ставим оба атрибута: BNG матчит либо Delegated-, либо Framed-IPv6-Prefix
	if err := rfc4818.DelegatedIPv6Prefix_Set(p, nw); err != nil {
		return fmt.Errorf("coa: %w", err)
	}
	if err := rfc3162.FramedIPv6Prefix_Set(p, nw); err != nil {
		return fmt.Errorf("coa: %w", err)
	}

	resp, err := c.send(ctx, p, s)
	if err != nil {
		return err
	}
	if resp.Code != radius.CodeCoAACK {
		return fmt.Errorf("coa: nas %s answered %v", s.NASAddress, resp.Code)
	}
	return nil
}

// Disconnect — немедленно завершить сессию.
func (c *CoAClient) Disconnect(ctx context.Context, s lifecycle.Session) error {
	p := radius.New(radius.CodeDisconnectRequest, c.secret)
	identify(p, s)

	resp, err := c.send(ctx, p, s)
	if err != nil {
		return err
	}
	if resp.Code != radius.CodeDisconnectACK {
		return fmt.Errorf("disconnect: nas %s answered %v", s.NASAddress, resp.Code)
	}
	return nil
}

func (c *CoAClient) send(ctx context.Context, p *radius.Packet, s lifecycle.Session) (*radius.Packet, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.exchange(ctx, p, net.JoinHostPort(s.NASAddress, strconv.Itoa(c.port)))
}

// identify — атрибуты идентификации сессии (RFC 5176 §3).
func identify(p *radius.Packet, s lifecycle.Session) {
	_ = rfc2865.UserName_SetString(p, s.Username)
	if s.AcctSessionID != "" {
		_ = rfc2866.AcctSessionID_SetString(p, s.AcctSessionID)
	}
}
