// Package imap wraps the IMAP mailbox the steward sorts. All operations are
// fallible remote calls; reads and writes retry a bounded number of times and
// the connection is rebuilt after a failed attempt.
package imap

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"steward-backend/pkg/config"
	"steward-backend/pkg/pdf"
)

// Message is the transport-level view of a mail message.
type Message struct {
	UID        uint32
	MessageID  string
	Subject    string
	Sender     string
	To         string
	Cc         string
	ReceivedAt time.Time
	Body       string
	Flagged    bool
	Folder     string
}

// Service manages a lazily-connected IMAP session against the configured
// mailbox. The connection handles one command at a time, and the poller
// shares the Service with preview and diagnostics requests, so mu
// serializes everything that touches it.
type Service struct {
	cfg          *config.Config
	pdfExtractor *pdf.Extractor

	mu           sync.Mutex
	conn         *client.Client
	folderCache  []string
	folderCached time.Time
}

// NewService creates a Service. The connection is established on first use.
func NewService(cfg *config.Config, pdfExtractor *pdf.Extractor) *Service {
	return &Service{cfg: cfg, pdfExtractor: pdfExtractor}
}

func (s *Service) connect() (*client.Client, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.IMAPHost, s.cfg.IMAPPort)
	log.Printf("[IMAP] Connecting to %s", addr)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial failed: %w", err)
	}
	c.Timeout = s.cfg.IMAPTimeout

	if err := c.Login(s.cfg.IMAPUsername, s.cfg.IMAPPassword); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	s.conn = c
	return c, nil
}

// resetConnection drops the current session so the next call reconnects.
func (s *Service) resetConnection() {
	if s.conn != nil {
		_ = s.conn.Logout()
		s.conn = nil
	}
	s.folderCache = nil
}

// withRetry runs fn up to the configured attempt count, resetting the
// connection between attempts. The last error is returned wrapped.
func (s *Service) withRetry(op string, fn func(c *client.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.cfg.IMAPRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		c, err := s.connect()
		if err != nil {
			lastErr = err
			continue
		}
		if err := fn(c); err != nil {
			log.Printf("[IMAP] %s attempt %d/%d failed: %v", op, i+1, attempts, err)
			lastErr = err
			s.resetConnection()
			continue
		}
		return nil
	}
	return fmt.Errorf("imap %s failed after %d attempts: %w", op, attempts, lastErr)
}

// FetchSeenMessages returns every read message currently in the inbox.
func (s *Service) FetchSeenMessages() ([]*Message, error) {
	var messages []*Message
	err := s.withRetry("fetch seen", func(c *client.Client) error {
		if _, err := c.Select(s.cfg.IMAPMailbox, false); err != nil {
			return err
		}

		criteria := goimap.NewSearchCriteria()
		criteria.WithFlags = []string{goimap.SeenFlag}
		uids, err := c.UidSearch(criteria)
		if err != nil {
			return err
		}
		if len(uids) == 0 {
			messages = nil
			return nil
		}

		seqset := new(goimap.SeqSet)
		seqset.AddNum(uids...)

		section := &goimap.BodySectionName{Peek: true}
		items := []goimap.FetchItem{goimap.FetchUid, goimap.FetchFlags, goimap.FetchInternalDate, section.FetchItem()}

		ch := make(chan *goimap.Message, 10)
		done := make(chan error, 1)
		go func() {
			done <- c.UidFetch(seqset, items, ch)
		}()

		var fetched []*Message
		for msg := range ch {
			parsed, err := s.parseMessage(msg, section)
			if err != nil {
				log.Printf("[IMAP] Skipping unparseable message %d: %v", msg.Uid, err)
				continue
			}
			fetched = append(fetched, parsed)
		}
		if err := <-done; err != nil {
			return err
		}
		messages = fetched
		return nil
	})
	return messages, err
}

// Contains reports whether the given UID is still present in the inbox. The
// sticky tracker uses this to observe the user archiving a flagged message.
func (s *Service) Contains(uid uint32) (bool, error) {
	var present bool
	err := s.withRetry("contains", func(c *client.Client) error {
		if _, err := c.Select(s.cfg.IMAPMailbox, true); err != nil {
			return err
		}
		criteria := goimap.NewSearchCriteria()
		seqset := new(goimap.SeqSet)
		seqset.AddNum(uid)
		criteria.Uid = seqset
		uids, err := c.UidSearch(criteria)
		if err != nil {
			return err
		}
		present = len(uids) > 0
		return nil
	})
	return present, err
}

// FindByMessageID searches a folder for a message by its Message-Id header
// and returns its UID there, or 0 when absent. UIDs are per-folder, so the
// sticky tracker uses this to locate a message after the user archives it.
func (s *Service) FindByMessageID(folder, messageID string) (uint32, error) {
	if messageID == "" {
		return 0, nil
	}
	var found uint32
	err := s.withRetry("find by message id", func(c *client.Client) error {
		if _, err := c.Select(folder, true); err != nil {
			return err
		}
		criteria := goimap.NewSearchCriteria()
		criteria.Header.Set("Message-Id", messageID)
		uids, err := c.UidSearch(criteria)
		if err != nil {
			return err
		}
		if len(uids) > 0 {
			found = uids[0]
		}
		return nil
	})
	return found, err
}

// Move relocates a message into destination, creating the folder tree first.
func (s *Service) Move(uid uint32, destination string) error {
	if err := s.EnsureFolder(destination); err != nil {
		return err
	}
	log.Printf("[IMAP] Moving message %d -> %s", uid, destination)
	return s.withRetry("move", func(c *client.Client) error {
		if _, err := c.Select(s.cfg.IMAPMailbox, false); err != nil {
			return err
		}
		seqset := new(goimap.SeqSet)
		seqset.AddNum(uid)
		return c.UidMove(seqset, destination)
	})
}

// MoveFrom relocates a message sitting in source back into destination.
// Undo uses this to reverse an earlier Move.
func (s *Service) MoveFrom(uid uint32, source, destination string) error {
	if err := s.EnsureFolder(destination); err != nil {
		return err
	}
	log.Printf("[IMAP] Moving message %d from %s -> %s", uid, source, destination)
	return s.withRetry("move from", func(c *client.Client) error {
		if _, err := c.Select(source, false); err != nil {
			return err
		}
		seqset := new(goimap.SeqSet)
		seqset.AddNum(uid)
		return c.UidMove(seqset, destination)
	})
}

// Flag sets \Flagged on a message.
func (s *Service) Flag(uid uint32) error {
	return s.storeFlags(uid, goimap.AddFlags)
}

// Unflag clears \Flagged on a message.
func (s *Service) Unflag(uid uint32) error {
	return s.storeFlags(uid, goimap.RemoveFlags)
}

func (s *Service) storeFlags(uid uint32, op goimap.FlagsOp) error {
	return s.withRetry("store flags", func(c *client.Client) error {
		if _, err := c.Select(s.cfg.IMAPMailbox, false); err != nil {
			return err
		}
		seqset := new(goimap.SeqSet)
		seqset.AddNum(uid)
		item := goimap.FormatFlagsOp(op, true)
		return c.UidStore(seqset, item, []interface{}{goimap.FlaggedFlag}, nil)
	})
}

// EnsureFolder creates every missing segment of a folder path.
func (s *Service) EnsureFolder(folder string) error {
	existing, err := s.ListFolders(false)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, f := range existing {
		known[f] = true
	}
	if known[folder] {
		return nil
	}

	parts := strings.Split(folder, "/")
	return s.withRetry("ensure folder", func(c *client.Client) error {
		for i := 1; i <= len(parts); i++ {
			sub := strings.Join(parts[:i], "/")
			if known[sub] {
				continue
			}
			log.Printf("[IMAP] Creating folder %s", sub)
			if err := c.Create(sub); err != nil {
				// Another client may have created it since the listing.
				if !strings.Contains(strings.ToLower(err.Error()), "already exists") {
					return err
				}
			}
			known[sub] = true
		}
		s.folderCache = nil
		return nil
	})
}

// ListFolders returns the sorted folder tree, cached for five minutes.
func (s *Service) ListFolders(refresh bool) ([]string, error) {
	s.mu.Lock()
	if !refresh && s.folderCache != nil && time.Since(s.folderCached) < 5*time.Minute {
		cached := s.folderCache
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	var folders []string
	err := s.withRetry("list folders", func(c *client.Client) error {
		ch := make(chan *goimap.MailboxInfo, 10)
		done := make(chan error, 1)
		go func() {
			done <- c.List("", "*", ch)
		}()
		var listed []string
		for mbox := range ch {
			listed = append(listed, mbox.Name)
		}
		if err := <-done; err != nil {
			return err
		}
		sort.Strings(listed)
		folders = listed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.folderCache = folders
	s.folderCached = time.Now()
	s.mu.Unlock()
	return folders, nil
}

// Diagnostics reports connection and mailbox state for the diagnostics endpoint.
func (s *Service) Diagnostics() map[string]interface{} {
	result := map[string]interface{}{
		"server":  fmt.Sprintf("%s:%d", s.cfg.IMAPHost, s.cfg.IMAPPort),
		"mailbox": s.cfg.IMAPMailbox,
		"ok":      false,
	}

	err := s.withRetry("diagnostics", func(c *client.Client) error {
		status, err := c.Status(s.cfg.IMAPMailbox, []goimap.StatusItem{goimap.StatusMessages, goimap.StatusUnseen})
		if err != nil {
			return err
		}
		result["ok"] = true
		result["messages"] = status.Messages
		result["unseen"] = status.Unseen
		return nil
	})
	if err != nil {
		result["error"] = err.Error()
	}
	return result
}

// Close logs out the current session.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetConnection()
}

func (s *Service) parseMessage(msg *goimap.Message, section *goimap.BodySectionName) (*Message, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("message %d has no body section", msg.Uid)
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	header := mr.Header
	subject, _ := header.Subject()
	messageID, _ := header.MessageID()

	parsed := &Message{
		UID:        msg.Uid,
		MessageID:  messageID,
		Subject:    subject,
		Sender:     formatAddressList(header, "From"),
		To:         formatAddressList(header, "To"),
		Cc:         formatAddressList(header, "Cc"),
		ReceivedAt: msg.InternalDate.UTC(),
		Folder:     s.cfg.IMAPMailbox,
	}
	if parsed.ReceivedAt.IsZero() {
		parsed.ReceivedAt = time.Now().UTC()
	}
	for _, f := range msg.Flags {
		if f == goimap.FlaggedFlag {
			parsed.Flagged = true
		}
	}

	var chunks []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("[IMAP] Failed to read part of message %d: %v", msg.Uid, err)
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if contentType != "text/plain" && contentType != "text/html" {
				continue
			}
			data, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			text := string(data)
			if contentType == "text/html" {
				text = stripHTML(text)
			}
			chunks = append(chunks, text)
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if s.pdfExtractor == nil || !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
				continue
			}
			data, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			text, err := s.pdfExtractor.ExtractText(data)
			if err != nil {
				log.Printf("[IMAP] Failed to extract PDF %s from message %d: %v", filename, msg.Uid, err)
				continue
			}
			if text != "" {
				chunks = append(chunks, text)
			}
		}
	}
	parsed.Body = strings.Join(chunks, "\n")

	return parsed, nil
}

func formatAddressList(header mail.Header, key string) string {
	addrs, err := header.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

var htmlTagReplacer = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n")

func stripHTML(html string) string {
	html = htmlTagReplacer.Replace(html)
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
