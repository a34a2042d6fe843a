package blog

import (
	"context"
	"errors"
	"strings"

	contactstore "github.com/dalemusser/stratablog/internal/app/store/contacts"
	"github.com/dalemusser/stratablog/internal/app/system/authz"
	"github.com/dalemusser/stratablog/internal/app/system/inputval"
	"github.com/dalemusser/stratablog/internal/app/system/mailer"
	"github.com/dalemusser/stratablog/internal/app/system/normalize"
	"github.com/dalemusser/stratablog/internal/app/system/txn"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Notifier delivers reply notifications. *mailer.Mailer satisfies it.
type Notifier interface {
	Send(ctx context.Context, email mailer.Email) error
}

// ContactInput is the public contact form.
type ContactInput struct {
	FirstName string `json:"first_name" validate:"required,max=100" label:"First name"`
	LastName  string `json:"last_name" validate:"required,max=100" label:"Last name"`
	Email     string `json:"email" validate:"required,mailbox,max=254" label:"Email"`
	Subject   string `json:"subject" validate:"required,max=200" label:"Subject"`
	Message   string `json:"message" validate:"required,max=10000" label:"Message"`
}

// ContactSummary is a contact in the admin inbox.
type ContactSummary struct {
	models.Contact
	ReplyCount int64 `json:"reply_count"`
}

// ReplyResult reports a stored reply and whether its notification went out.
type ReplyResult struct {
	Reply    models.Reply
	Contact  models.Contact
	Notified bool
}

// ThreadsConfig names the site in notification emails.
type ThreadsConfig struct {
	SiteName    string
	MessagesURL string
}

// Threads is the contact/reply service.
type Threads struct {
	db       *mongo.Database
	contacts *contactstore.Store
	notifier Notifier
	cfg      ThreadsConfig
	log      *zap.Logger
}

// NewThreads creates the thread service. notifier may be nil.
func NewThreads(db *mongo.Database, notifier Notifier, cfg ThreadsConfig, log *zap.Logger) *Threads {
	if log == nil {
		log = zap.NewNop()
	}
	return &Threads{
		db:       db,
		contacts: contactstore.New(db),
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// Submit stores a contact message from anyone. Nothing is written unless every field is present.
func (t *Threads) Submit(ctx context.Context, in ContactInput) (models.Contact, error) {
	in.FirstName = normalize.Name(in.FirstName)
	in.LastName = normalize.Name(in.LastName)
	in.Email = normalize.Email(in.Email)
	in.Subject = normalize.Name(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	if res := inputval.Validate(in); res.HasErrors() {
		return models.Contact{}, invalidFields(res.Map())
	}

	c, err := t.contacts.Create(ctx, models.Contact{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Subject:   in.Subject,
		Message:   in.Message,
	})
	if err != nil {
		return models.Contact{}, transient(err)
	}
	return c, nil
}

// ListAll returns the admin inbox, newest first, with reply counts.
func (t *Threads) ListAll(ctx context.Context, actor authz.Actor) ([]ContactSummary, error) {
	if !authz.CanAccessAdminArea(actor) {
		return nil, ErrForbidden
	}
	contacts, err := t.contacts.ListAll(ctx)
	if err != nil {
		return nil, transient(err)
	}
	ids := make([]primitive.ObjectID, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
	}
	counts, err := t.contacts.ReplyCounts(ctx, ids)
	if err != nil {
		return nil, transient(err)
	}
	out := make([]ContactSummary, len(contacts))
	for i, c := range contacts {
		out[i] = ContactSummary{Contact: c, ReplyCount: counts[c.ID]}
	}
	return out, nil
}

func (t *Threads) load(ctx context.Context, id primitive.ObjectID) (models.Contact, error) {
	c, err := t.contacts.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Contact{}, ErrNotFound
	}
	if err != nil {
		return models.Contact{}, transient(err)
	}
	return c, nil
}

// View returns a thread to an admin and marks the contact read. Viewing twice
// changes nothing further.
func (t *Threads) View(ctx context.Context, id primitive.ObjectID, actor authz.Actor) (models.Thread, error) {
	if !authz.CanAccessAdminArea(actor) {
		return models.Thread{}, ErrForbidden
	}
	c, err := t.load(ctx, id)
	if err != nil {
		return models.Thread{}, err
	}
	if !c.IsRead {
		if err := t.contacts.MarkRead(ctx, id); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.Thread{}, ErrNotFound
			}
			return models.Thread{}, transient(err)
		}
		c.IsRead = true
	}
	replies, err := t.contacts.RepliesFor(ctx, id)
	if err != nil {
		return models.Thread{}, transient(err)
	}
	return models.Thread{Contact: c, Replies: replies}, nil
}

// Reply appends an admin reply to a thread, then emails the submitter.
// A failed email does not fail the reply.
func (t *Threads) Reply(ctx context.Context, id primitive.ObjectID, actor authz.Actor, message string) (ReplyResult, error) {
	if !authz.CanAccessAdminArea(actor) {
		return ReplyResult{}, ErrForbidden
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ReplyResult{}, invalid("message", "Reply message is required.")
	}
	c, err := t.load(ctx, id)
	if err != nil {
		return ReplyResult{}, err
	}
	r, err := t.contacts.AddReply(ctx, models.Reply{
		ContactID: c.ID,
		AdminID:   actor.ID,
		Message:   message,
	})
	if err != nil {
		return ReplyResult{}, transient(err)
	}
	return ReplyResult{Reply: r, Contact: c, Notified: t.notify(ctx, c, message)}, nil
}

func (t *Threads) notify(ctx context.Context, c models.Contact, message string) bool {
	if t.notifier == nil {
		return false
	}
	email := mailer.ReplyEmail(c.Email, mailer.ReplyEmailData{
		SiteName:        t.cfg.SiteName,
		RecipientName:   c.FirstName,
		OriginalSubject: c.Subject,
		ReplyMessage:    message,
		MessagesURL:     t.cfg.MessagesURL,
	})
	if err := t.notifier.Send(ctx, email); err != nil {
		if !errors.Is(err, mailer.ErrDisabled) {
			t.log.Warn("reply notification failed",
				zap.String("contact_id", c.ID.Hex()),
				zap.Error(err))
		}
		return false
	}
	return true
}

// ListForRequester returns every thread submitted from email, newest first.
// The email is trusted as given; callers must pass an address the requester
// has proven they own.
func (t *Threads) ListForRequester(ctx context.Context, email string) ([]models.Thread, error) {
	email = normalize.Email(email)
	if email == "" {
		return []models.Thread{}, nil
	}
	contacts, err := t.contacts.ListByEmail(ctx, email)
	if err != nil {
		return nil, transient(err)
	}
	ids := make([]primitive.ObjectID, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
	}
	replies, err := t.contacts.RepliesForMany(ctx, ids)
	if err != nil {
		return nil, transient(err)
	}
	out := make([]models.Thread, len(contacts))
	for i, c := range contacts {
		rs := replies[c.ID]
		if rs == nil {
			rs = []models.Reply{}
		}
		out[i] = models.Thread{Contact: c, Replies: rs}
	}
	return out, nil
}

// Delete removes a contact and its replies together.
func (t *Threads) Delete(ctx context.Context, id primitive.ObjectID, actor authz.Actor) error {
	if !authz.CanAccessAdminArea(actor) {
		return ErrForbidden
	}
	if _, err := t.load(ctx, id); err != nil {
		return err
	}
	err := txn.Run(ctx, t.db, t.log, func(ctx context.Context) error {
		if _, err := t.contacts.DeleteReplies(ctx, id); err != nil {
			return err
		}
		return t.contacts.Delete(ctx, id)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return transient(err)
	}
	return nil
}
