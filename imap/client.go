// Package imap is a mailbox gateway for plain IMAP servers. Message ids have
// the form "<uidvalidity>:<uid>" so a rebuilt mailbox never aliases old ids.
package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bassamadnan/mailsheet/mail"
	"github.com/bassamadnan/mailsheet/retry"
)

const dialTimeout = 30 * time.Second

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
	TLS      bool
}

// session is the part of *client.Client the gateway uses.
type session interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

type dialFunc func(ctx context.Context) (session, error)

type Client struct {
	cfg  Config
	dial dialFunc
	log  *zap.Logger

	mu          sync.Mutex
	conn        session
	uidValidity uint32
}

// NewClient returns a gateway that connects on first use.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	c := &Client{cfg: cfg, log: log}
	c.dial = c.dialServer
	return c
}

func (c *Client) dialServer(ctx context.Context) (session, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: dialTimeout}

	var (
		cl  *client.Client
		err error
	)
	if c.cfg.TLS {
		cl, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: c.cfg.Host})
	} else {
		cl, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", addr)
	}

	cl.Timeout = dialTimeout
	if err := cl.Login(c.cfg.Username, c.cfg.Password); err != nil {
		_ = cl.Logout()
		return nil, errors.Wrapf(err, "logging in as %s", c.cfg.Username)
	}
	cl.Timeout = 0

	c.log.Info("connected to IMAP server", zap.String("addr", addr), zap.String("user", c.cfg.Username))
	return cl, nil
}

// connect returns the open connection, dialing and selecting the folder when
// there is none. Callers hold c.mu.
func (c *Client) connect(ctx context.Context) (session, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	status, err := conn.Select(c.cfg.Folder, false)
	if err != nil {
		_ = conn.Logout()
		return nil, errors.Wrapf(err, "selecting folder %s", c.cfg.Folder)
	}
	c.conn = conn
	c.uidValidity = status.UidValidity
	return conn, nil
}

// fail drops the connection so the next call, usually a retry, reconnects.
func (c *Client) fail(op string, err error) error {
	if c.conn != nil {
		_ = c.conn.Logout()
		c.conn = nil
	}
	return retry.Provider(op, err)
}

// ListUnread returns the ids of messages without the \Seen flag.
func (c *Client) ListUnread(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, c.fail("imap: connect", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		return nil, c.fail("imap: search unseen", err)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, formatID(c.uidValidity, uid))
	}
	return ids, nil
}

// Fetch downloads the raw message without setting \Seen and decodes it.
// A message that no longer exists returns nil and no error.
func (c *Client) Fetch(ctx context.Context, id string) (*mail.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	uid, err := c.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.conn.UidFetch(seqset, []imap.FetchItem{section.FetchItem(), imap.FetchUid}, messages)
	}()

	var raw []byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		b, err := io.ReadAll(body)
		if err != nil {
			<-done
			return nil, c.fail("imap: read message "+id, err)
		}
		raw = b
	}
	if err := <-done; err != nil {
		return nil, c.fail("imap: fetch message "+id, err)
	}
	if raw == nil {
		return nil, nil
	}

	msg, err := convertRaw(id, raw)
	if err != nil {
		return nil, retry.Provider("imap: decode message "+id, err)
	}
	return msg, nil
}

// MarkRead sets \Seen on id.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	uid, err := c.resolve(ctx, id)
	if err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.conn.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return c.fail("imap: mark read "+id, err)
	}
	return nil
}

// Close logs out of the server if connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Logout()
	c.conn = nil
	return err
}

// resolve connects if needed and checks that id belongs to the selected
// folder's current UIDVALIDITY. Callers hold c.mu.
func (c *Client) resolve(ctx context.Context, id string) (uint32, error) {
	validity, uid, err := parseID(id)
	if err != nil {
		return 0, retry.Provider("imap: parse id", err)
	}
	if _, err := c.connect(ctx); err != nil {
		return 0, c.fail("imap: connect", err)
	}
	if validity != c.uidValidity {
		return 0, retry.Provider("imap: resolve "+id,
			errors.Errorf("uidvalidity changed from %d to %d", validity, c.uidValidity))
	}
	return uid, nil
}

func formatID(validity, uid uint32) string {
	return fmt.Sprintf("%d:%d", validity, uid)
}

func parseID(id string) (validity, uid uint32, err error) {
	v, u, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, errors.Errorf("malformed message id %q", id)
	}
	pv, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "malformed message id %q", id)
	}
	pu, err := strconv.ParseUint(u, 10, 32)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "malformed message id %q", id)
	}
	return uint32(pv), uint32(pu), nil
}

// convertRaw parses an RFC 5322 message into the provider-neutral form.
func convertRaw(id string, raw []byte) (*mail.Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "parsing MIME message")
	}

	msg := &mail.Message{ID: id}
	keys := env.GetHeaderKeys()
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range env.GetHeaderValues(k) {
			msg.Headers = append(msg.Headers, mail.Header{Name: k, Value: v})
		}
	}
	if env.Root != nil {
		p := convertPart(env.Root)
		msg.Payload = &p
	}
	return msg, nil
}

func convertPart(p *enmime.Part) mail.Part {
	part := mail.Part{MimeType: strings.ToLower(p.ContentType), Body: p.Content}
	for child := p.FirstChild; child != nil; child = child.NextSibling {
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}
