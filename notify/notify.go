/*
LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package notify provides throttled ops email notifications, used to
// surface conditions that the monitor loop can't recover from on its
// own (credential failures, retry exhaustion, fatal startup errors).
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mailjet "github.com/mailjet/mailjet-apiv3-go"

	"github.com/ausocean/openfish/datastore"
)

// Kind identifies the category of condition being notified about. Kinds
// are used both for email subjects and for throttling keys, so that a
// flood of e.g. pipeline failures for one channel doesn't also suppress
// an unrelated credential failure notification.
type Kind string

// Kinds of notification raised by the monitor.
const (
	KindCredential Kind = "credential_failure"
	KindPipeline   Kind = "pipeline_failure"
	KindStore      Kind = "store_failure"
	KindFatal      Kind = "fatal_error"
)

// TimeStore persists the last-sent time for a given channel/kind pair,
// so that Notifier can throttle repeat notifications.
type TimeStore interface {
	Get(channel int64, key string) (time.Time, error)
	Set(channel int64, key string, t time.Time) error
}

// Lookup resolves the recipients and minimum resend period for a
// notification kind, given the channel it concerns.
type Lookup func(channel int64, kind Kind) ([]string, time.Duration, error)

// Notifier sends throttled ops notifications over email via Mailjet.
type Notifier struct {
	mu         sync.Mutex
	sender     string
	recipients []string
	lookup     Lookup
	store      TimeStore
	publicKey  string
	privateKey string
}

// Option configures a Notifier.
type Option func(*Notifier) error

// WithSender sets the sender email address.
func WithSender(sender string) Option {
	return func(n *Notifier) error { n.sender = sender; return nil }
}

// WithRecipients sets a fixed recipient list, used when no Lookup is provided.
func WithRecipients(recipients []string) Option {
	return func(n *Notifier) error { n.recipients = recipients; return nil }
}

// WithRecipientLookup sets a function used to resolve recipients and the
// resend period dynamically, based on the channel and notification kind.
func WithRecipientLookup(lookup Lookup) Option {
	return func(n *Notifier) error { n.lookup = lookup; return nil }
}

// WithStore applies a TimeStore used to throttle repeat notifications.
// Without one, every Send call dispatches an email.
func WithStore(store TimeStore) Option {
	return func(n *Notifier) error { n.store = store; return nil }
}

// WithSecrets applies the Mailjet public/private API keys.
func WithSecrets(secrets map[string]string) Option {
	return func(n *Notifier) error {
		var ok bool
		n.publicKey, ok = secrets["mailjetPublicKey"]
		if !ok {
			return errors.New("mailjetPublicKey secret not found")
		}
		n.privateKey, ok = secrets["mailjetPrivateKey"]
		if !ok {
			return errors.New("mailjetPrivateKey secret not found")
		}
		return nil
	}
}

// NewMailjetNotifier constructs a Notifier from the given options.
func NewMailjetNotifier(opts ...Option) (Notifier, error) {
	var n Notifier
	for _, opt := range opts {
		if err := opt(&n); err != nil {
			return Notifier{}, fmt.Errorf("could not apply notifier option: %w", err)
		}
	}
	return n, nil
}

// defaultResendPeriod is used when a Lookup is not supplied.
const defaultResendPeriod = time.Hour

// Send emails msg to the recipients registered for the given channel and
// kind, unless the same kind of message was sent for that channel within
// the resend period. Errors from the underlying mail provider are
// returned; callers should log and continue rather than treat Send
// failures as fatal, per the monitor's error-handling policy.
func (n *Notifier) Send(ctx context.Context, channel int64, kind Kind, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	recipients := n.recipients
	period := defaultResendPeriod
	if n.lookup != nil {
		r, p, err := n.lookup(channel, kind)
		if err != nil {
			return fmt.Errorf("could not look up recipients: %w", err)
		}
		recipients = r
		if p > 0 {
			period = p
		}
	}
	if len(recipients) == 0 {
		return errors.New("no recipients configured")
	}

	throttleKey := string(kind)
	if n.store != nil {
		last, err := n.store.Get(channel, throttleKey)
		if err == nil && time.Since(last) < period {
			return nil // Too soon since the last notification of this kind.
		}
	}

	if n.sender != "" && n.publicKey != "" {
		clt := mailjet.NewMailjetClient(n.publicKey, n.privateKey)
		to := make(mailjet.RecipientsV31, 0, len(recipients))
		for _, r := range recipients {
			to = append(to, mailjet.RecipientV31{Email: r})
		}
		info := []mailjet.InfoMessagesV31{{
			From:     &mailjet.RecipientV31{Email: n.sender},
			To:       &to,
			Subject:  strings.Title(strings.ReplaceAll(string(kind), "_", " ")) + " notification",
			TextPart: msg,
		}}
		_, err := clt.SendMailV31(&mailjet.MessagesV31{Info: info})
		if err != nil {
			return fmt.Errorf("could not send mail: %w", err)
		}
	}

	if n.store != nil {
		if err := n.store.Set(channel, throttleKey, time.Now()); err != nil {
			return fmt.Errorf("could not record notification time: %w", err)
		}
	}

	return nil
}

// dsTimeStore implements TimeStore on top of an openfish/datastore.Store,
// so that throttle state survives process restarts the same way Seen and
// Notified do. See notifyTime in timestore.go.
type dsTimeStore struct {
	store datastore.Store
}

// NewStore returns a TimeStore backed by the given datastore.
func NewStore(store datastore.Store) TimeStore {
	return &dsTimeStore{store: store}
}
