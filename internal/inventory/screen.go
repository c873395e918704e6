package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	opList   = "list"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// ScreenState is a snapshot of the inventory screen used for rendering.
type ScreenState struct {
	Items       []Item
	Visible     []Item
	Search      string
	Loaded      bool
	ModalOpen   bool
	Editing     *Item
	Form        ItemForm
	FieldErrors FieldErrors
	Error       string
	Notice      string
}

// IsEditing reports whether the modal edits an existing item.
func (s ScreenState) IsEditing() bool {
	return s.Editing != nil
}

// ModalTitle is the heading of the add/edit modal.
func (s ScreenState) ModalTitle() string {
	if s.Editing != nil {
		return "Edit Inventory Item"
	}
	return "Add New Inventory Item"
}

// ScreenOptions tunes a Screen. Zero values are usable.
type ScreenOptions struct {
	Timeout   time.Duration
	Logger    *slog.Logger
	Validator *Validator
	NewToken  func() string
}

// Screen owns the state of one inventory screen: the cached collection,
// the search text and the add/edit modal. All store calls go through it.
type Screen struct {
	store     Store
	validator *Validator
	timeout   time.Duration
	logger    *slog.Logger
	newToken  func() string

	life context.Context
	stop context.CancelFunc

	mu          sync.Mutex
	items       []Item
	search      string
	loaded      bool
	modalOpen   bool
	editing     *Item
	form        ItemForm
	fieldErrors FieldErrors
	errMsg      string
	notice      string
	loadSeq     uint64
	appliedSeq  uint64
}

// NewScreen mounts a screen on store. Call Close when it goes away.
func NewScreen(store Store, opts ScreenOptions) *Screen {
	if opts.Validator == nil {
		opts.Validator = NewValidator()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewToken == nil {
		opts.NewToken = uuid.NewString
	}
	life, stop := context.WithCancel(context.Background())
	return &Screen{
		store:     store,
		validator: opts.Validator,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		newToken:  opts.NewToken,
		life:      life,
		stop:      stop,
	}
}

// Close cancels in-flight store calls and disables the screen.
func (s *Screen) Close() {
	s.stop()
}

// Load fetches the whole collection and replaces the local copy.
func (s *Screen) Load(ctx context.Context) error {
	ctx, release, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := s.load(ctx); err != nil {
		return s.fail(err)
	}
	s.mu.Lock()
	s.errMsg, s.notice = "", ""
	s.mu.Unlock()
	return nil
}

// Reload fetches the collection like Load but keeps the current message, so
// a failed submit stays visible above the refreshed table.
func (s *Screen) Reload(ctx context.Context) error {
	ctx, release, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := s.reloadQuietly(ctx); err != nil {
		if s.life.Err() != nil {
			return ErrScreenClosed
		}
		return err
	}
	return nil
}

// OpenCreate shows an empty modal for a new item.
func (s *Screen) OpenCreate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetModal()
	s.errMsg, s.notice = "", ""
	s.form = ItemForm{Token: s.newToken()}
	s.modalOpen = true
}

// OpenEdit shows the modal pre-filled with item.
func (s *Screen) OpenEdit(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetModal()
	s.errMsg, s.notice = "", ""
	target := item
	s.editing = &target
	s.form = FormFromItem(item)
	s.modalOpen = true
}

// Cancel hides the modal and forgets the form. It never calls the store.
func (s *Screen) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetModal()
	s.errMsg = ""
}

// Submit validates form and creates or updates the item. Invalid input
// returns FieldErrors without touching the store. After a successful
// mutation the collection is reloaded before the modal closes.
func (s *Screen) Submit(ctx context.Context, form ItemForm) error {
	ctx, release, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	if !s.modalOpen {
		s.mu.Unlock()
		return ErrModalClosed
	}
	if form.Token == "" {
		form.Token = s.form.Token
	}
	s.form = form
	s.errMsg, s.notice = "", ""
	fields := form.Fields()
	if errs := s.validator.Check(fields); len(errs) > 0 {
		s.fieldErrors = errs
		s.mu.Unlock()
		return errs
	}
	s.fieldErrors = nil
	var editing *Item
	if s.editing != nil {
		target := *s.editing
		editing = &target
	}
	s.mu.Unlock()

	op, id := opCreate, ""
	if editing != nil {
		op, id = opUpdate, editing.ID
		_, err = s.store.Update(ctx, id, fields)
	} else {
		_, err = s.store.Create(WithIdempotencyKey(ctx, form.Token), fields)
	}
	if err != nil {
		return s.submitFailed(ctx, op, id, err)
	}
	s.finishMutation(ctx, "")
	return nil
}

func (s *Screen) submitFailed(ctx context.Context, op, id string, err error) error {
	if s.life.Err() != nil {
		return ErrScreenClosed
	}
	serr := Classify(op, id, err)
	s.logger.Warn("inventory submit failed", slog.String("op", op), slog.String("id", id), slog.Any("error", err))
	switch serr.Kind {
	case KindConflict:
		if op == opCreate {
			s.finishMutation(ctx, serr.UserMessage())
			return nil
		}
	case KindNotFound:
		s.mu.Lock()
		s.resetModal()
		s.errMsg = serr.UserMessage()
		s.mu.Unlock()
		s.reloadQuietly(ctx)
		return serr
	case KindValidation:
		s.mu.Lock()
		s.fieldErrors = serr.Fields
		s.errMsg = serr.UserMessage()
		s.mu.Unlock()
		return serr
	}
	s.mu.Lock()
	s.errMsg = serr.UserMessage()
	s.mu.Unlock()
	return serr
}

// finishMutation refetches the collection, then closes the modal.
func (s *Screen) finishMutation(ctx context.Context, notice string) {
	s.reloadQuietly(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetModal()
	s.notice = notice
}

// Delete removes the item and reloads the collection.
func (s *Screen) Delete(ctx context.Context, id string) error {
	ctx, release, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	if s.modalOpen {
		s.mu.Unlock()
		return ErrModalOpen
	}
	s.errMsg, s.notice = "", ""
	s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		if s.life.Err() != nil {
			return ErrScreenClosed
		}
		serr := Classify(opDelete, id, err)
		s.logger.Warn("inventory delete failed", slog.String("id", id), slog.Any("error", err))
		s.mu.Lock()
		s.errMsg = serr.UserMessage()
		s.mu.Unlock()
		if serr.Kind == KindNotFound {
			s.reloadQuietly(ctx)
		}
		return serr
	}
	s.reloadQuietly(ctx)
	return nil
}

// SetSearch changes the name filter.
func (s *Screen) SetSearch(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = text
}

// Filtered returns the items matching the current search.
func (s *Screen) Filtered() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FilterByName(s.items, s.search)
}

// Item looks up a loaded item by id.
func (s *Screen) Item(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// ExportCSV writes the currently filtered rows as the inventory report.
func (s *Screen) ExportCSV(w io.Writer) error {
	return WriteCSV(w, s.Filtered())
}

// State returns a copy of the screen state.
func (s *Screen) State() ScreenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := ScreenState{
		Items:     append([]Item(nil), s.items...),
		Visible:   FilterByName(s.items, s.search),
		Search:    s.search,
		Loaded:    s.loaded,
		ModalOpen: s.modalOpen,
		Form:      s.form,
		Error:     s.errMsg,
		Notice:    s.notice,
	}
	if s.editing != nil {
		target := *s.editing
		state.Editing = &target
	}
	if len(s.fieldErrors) > 0 {
		state.FieldErrors = make(FieldErrors, len(s.fieldErrors))
		for k, v := range s.fieldErrors {
			state.FieldErrors[k] = v
		}
	}
	return state
}

// load replaces the collection unless a newer load already landed.
func (s *Screen) load(ctx context.Context) error {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()

	items, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.appliedSeq {
		return nil
	}
	s.appliedSeq = seq
	s.items = append([]Item(nil), items...)
	s.loaded = true
	return nil
}

// reloadQuietly refetches without replacing a message already shown.
func (s *Screen) reloadQuietly(ctx context.Context) error {
	err := s.load(ctx)
	if err == nil {
		return nil
	}
	serr := Classify(opList, "", err)
	s.logger.Warn("inventory reload failed", slog.Any("error", err))
	s.mu.Lock()
	if s.errMsg == "" {
		s.errMsg = serr.UserMessage()
	}
	s.mu.Unlock()
	return serr
}

func (s *Screen) fail(err error) error {
	if s.life.Err() != nil {
		return ErrScreenClosed
	}
	serr := Classify(opList, "", err)
	s.logger.Warn("inventory load failed", slog.Any("error", err))
	s.mu.Lock()
	s.errMsg = serr.UserMessage()
	s.mu.Unlock()
	return serr
}

func (s *Screen) resetModal() {
	s.modalOpen = false
	s.editing = nil
	s.form = ItemForm{}
	s.fieldErrors = nil
}

// scope derives a context bounded by the timeout and by Close.
func (s *Screen) scope(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if s.life.Err() != nil {
		return nil, nil, ErrScreenClosed
	}
	scoped, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(s.life, cancel)
	if s.timeout <= 0 {
		return scoped, func() { release(); cancel() }, nil
	}
	scoped, cancelTimeout := context.WithTimeout(scoped, s.timeout)
	return scoped, func() { cancelTimeout(); release(); cancel() }, nil
}

// IsClosed reports whether err comes from a closed screen.
func IsClosed(err error) bool {
	return errors.Is(err, ErrScreenClosed)
}
