package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"mailpump/internal/dkim"
)

// conn is one live relay connection plus its per-connection message count.
type conn struct {
	client *smtp.Client
	raw    net.Conn
	sent   int
}

// Pool manages up to MaxConnections keep-alive relay connections. Submit
// borrows a connection, performs one transaction, and either returns the
// connection for reuse or discards it after MaxMessages or any error.
type Pool struct {
	cfg    Config
	signer *dkim.Signer
	log    zerolog.Logger

	slots chan struct{}
	idle  chan *conn

	// dialFn is swapped in tests.
	dialFn func(ctx context.Context) (*conn, error)
}

// NewPool creates a connection pool for the configured relay. The signer
// may be nil.
func NewPool(cfg Config, signer *dkim.Signer, log zerolog.Logger) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		cfg:    cfg,
		signer: signer,
		log:    log.With().Str("component", "delivery").Logger(),
		slots:  make(chan struct{}, cfg.MaxConnections),
		idle:   make(chan *conn, cfg.MaxConnections),
	}
	p.dialFn = p.dial
	return p
}

// Submit performs one SMTP transaction for the envelope. Protocol
// rejections come back as *Error (via wrap); anything else is a transport
// failure.
func (p *Pool) Submit(ctx context.Context, env Envelope) error {
	data, err := p.signer.Sign(env.Data, env.From)
	if err != nil {
		return fmt.Errorf("dkim sign: %w", err)
	}

	c, err := p.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}

	if err := p.transact(c, env.From, env.To, data); err != nil {
		p.discard(c)
		return err
	}

	c.sent++
	if c.sent >= p.cfg.MaxMessages {
		p.log.Debug().Int("messages", c.sent).Msg("recycling connection")
		p.discard(c)
		return nil
	}
	p.release(c)
	return nil
}

// Close quits all idle connections. In-flight submissions finish on their
// own connections.
func (p *Pool) Close() {
	for {
		select {
		case c := <-p.idle:
			_ = c.client.Quit()
			<-p.slots
		default:
			return
		}
	}
}

func (p *Pool) transact(c *conn, from, to string, data []byte) error {
	if err := c.raw.SetDeadline(time.Now().Add(p.cfg.SocketTimeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if err := c.client.Mail(from); err != nil {
		return wrap("mail from", err)
	}
	if err := c.client.Rcpt(to); err != nil {
		return wrap("rcpt to", err)
	}
	w, err := c.client.Data()
	if err != nil {
		return wrap("data start", err)
	}
	if _, err := w.Write(data); err != nil {
		return wrap("data write", err)
	}
	if err := w.Close(); err != nil {
		return wrap("data close", err)
	}
	return nil
}

func (p *Pool) acquire(ctx context.Context) (*conn, error) {
	select {
	case c := <-p.idle:
		return c, nil
	default:
	}
	select {
	case c := <-p.idle:
		return c, nil
	case p.slots <- struct{}{}:
		c, err := p.dialFn(ctx)
		if err != nil {
			<-p.slots
			return nil, err
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(c *conn) {
	select {
	case p.idle <- c:
	default:
		// Idle buffer full; should not happen with slots == idle capacity.
		p.discard(c)
	}
}

func (p *Pool) discard(c *conn) {
	_ = c.client.Close()
	<-p.slots
}

// dial opens and greets a new relay connection, establishing TLS and
// authenticating per configuration.
func (p *Pool) dial(ctx context.Context) (*conn, error) {
	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	dialer := &net.Dialer{Timeout: p.cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	if p.cfg.ImplicitTLS {
		tlsConf := p.cfg.TLS
		if tlsConf == nil {
			tlsConf = &tls.Config{ServerName: p.cfg.Host, MinVersion: tls.VersionTLS12}
		}
		raw = tls.Client(raw, tlsConf)
	}

	if err := raw.SetDeadline(time.Now().Add(p.cfg.GreetingTimeout)); err != nil {
		raw.Close()
		return nil, fmt.Errorf("set greeting deadline: %w", err)
	}

	client, err := smtp.NewClient(raw, p.cfg.Host)
	if err != nil {
		raw.Close()
		return nil, wrap("greeting", err)
	}

	if err := client.Hello(p.cfg.HelloName); err != nil {
		client.Close()
		return nil, wrap("helo", err)
	}

	if !p.cfg.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConf := p.cfg.TLS
			if tlsConf == nil {
				tlsConf = &tls.Config{ServerName: p.cfg.Host, MinVersion: tls.VersionTLS12}
			}
			if err := client.StartTLS(tlsConf); err != nil {
				client.Close()
				return nil, wrap("starttls", err)
			}
		} else if !p.cfg.DisableSTARTTLS {
			client.Close()
			return nil, fmt.Errorf("starttls: relay does not offer STARTTLS")
		}
	}

	if p.cfg.Username != "" {
		auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, wrap("auth", err)
		}
	}

	p.log.Debug().Str("relay", addr).Msg("relay connection established")
	return &conn{client: client, raw: raw}, nil
}
