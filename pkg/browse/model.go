// Package browse is the interactive terminal catalog browser. It renders
// CatalogState snapshots and sends every read and write through the
// reconciliation service, so it works the same online and offline.
package browse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/marcus/shelf/internal/cart"
	"github.com/marcus/shelf/internal/catalog"
	"github.com/marcus/shelf/internal/connectivity"
	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/state"
)

// Service is the part of the reconciliation service the browser uses.
type Service interface {
	state.Reader
	AddBook(ctx context.Context, f models.BookFields) (models.Book, error)
	UpdateBook(ctx context.Context, id int64, f models.BookFields) (models.Book, error)
	DeleteBook(ctx context.Context, id int64) error
	FullSync(ctx context.Context) (catalog.FullSyncResult, error)
}

// Options configures the browser.
type Options struct {
	Cart     *cart.Cart
	CartPath string // empty disables persistence

	// Prober feeds the online banner. Nil disables the banner updates.
	Prober        connectivity.Prober
	ProbeInterval time.Duration
}

type mode int

const (
	modeList mode = iota
	modeDetail
	modeForm
	modeConfirm
	modeCart
)

// Messages
type (
	snapshotMsg    state.Snapshot
	refreshDoneMsg struct{ err error }
	selectDoneMsg  struct{ err error }
	mutationMsg    struct {
		action string // add, update, delete
		book   models.Book
		err    error
	}
	syncDoneMsg struct {
		res catalog.FullSyncResult
		err error
	}
)

var pastTense = map[string]string{"add": "Added", "update": "Updated", "delete": "Deleted"}

// Model is the Bubble Tea model for the catalog browser.
type Model struct {
	ctx   context.Context
	svc   Service
	state *state.Catalog
	cart  *cart.Cart
	opts  Options

	updates     chan state.Snapshot
	unsubscribe func()
	cancel      context.CancelFunc

	snap       state.Snapshot
	mode       mode
	prevMode   mode
	cursor     int
	cartCursor int
	confirmID  int64
	form       *BookForm

	filter    textinput.Model
	filtering bool

	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	showHelp bool

	flash    string
	flashErr bool

	width  int
	height int
}

// NewModel builds a browser over svc. Call Close when done if the model is
// not run through Run.
func NewModel(ctx context.Context, svc Service, opts Options) Model {
	if opts.Cart == nil {
		opts.Cart = cart.New()
	}
	ctx, cancel := context.WithCancel(ctx)
	st := state.New(svc)
	updates := make(chan state.Snapshot, 16)
	unsubscribe := st.Subscribe(func(s state.Snapshot) {
		select {
		case updates <- s:
		default:
			// Refresh and select completions re-read the snapshot.
		}
	})

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = priceStyle

	fi := textinput.New()
	fi.Placeholder = "filter titles"
	fi.Prompt = "/ "

	return Model{
		ctx:         ctx,
		svc:         svc,
		state:       st,
		cart:        opts.Cart,
		opts:        opts,
		updates:     updates,
		unsubscribe: unsubscribe,
		cancel:      cancel,
		snap:        st.Snapshot(),
		filter:      fi,
		spinner:     sp,
		help:        help.New(),
		keys:        defaultKeyMap(),
		width:       80,
		height:      24,
	}
}

// State exposes the underlying catalog state, mainly for wiring the
// connectivity watcher.
func (m Model) State() *state.Catalog { return m.state }

// Close detaches the model from its state and cancels its pending work.
func (m Model) Close() {
	m.unsubscribe()
	m.cancel()
	m.state.Close()
}

// Init starts the first refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), m.refresh())
}

func (m Model) listen() tea.Cmd {
	ch, done := m.updates, m.ctx.Done()
	return func() tea.Msg {
		select {
		case s := <-ch:
			return snapshotMsg(s)
		case <-done:
			return nil
		}
	}
}

func (m Model) refresh() tea.Cmd {
	st, ctx := m.state, m.ctx
	return func() tea.Msg {
		return refreshDoneMsg{err: st.Refresh(ctx)}
	}
}

func (m Model) selectBook(id int64) tea.Cmd {
	st, ctx := m.state, m.ctx
	return func() tea.Msg {
		return selectDoneMsg{err: st.Select(ctx, id)}
	}
}

func (m Model) addBook(f models.BookFields) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		b, err := svc.AddBook(ctx, f)
		return mutationMsg{action: "add", book: b, err: err}
	}
}

func (m Model) updateBook(id int64, f models.BookFields) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		b, err := svc.UpdateBook(ctx, id, f)
		return mutationMsg{action: "update", book: b, err: err}
	}
}

func (m Model) deleteBook(id int64) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		err := svc.DeleteBook(ctx, id)
		return mutationMsg{action: "delete", book: models.Book{ID: id}, err: err}
	}
}

func (m Model) runSync() tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		res, err := svc.FullSync(ctx)
		return syncDoneMsg{res: res, err: err}
	}
}

// Update handles messages and key input.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
	case snapshotMsg:
		m.snap = state.Snapshot(msg)
		m.clampCursor()
		return m, m.listen()
	case refreshDoneMsg:
		m.snap = m.state.Snapshot()
		m.clampCursor()
		return m, nil
	case selectDoneMsg:
		m.snap = m.state.Snapshot()
		return m, nil
	case mutationMsg:
		return m.handleMutation(msg)
	case syncDoneMsg:
		return m.handleSync(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.mode == modeForm {
		return m.updateForm(msg)
	}
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(keyMsg)
	}
	return m, nil
}

func (m Model) handleMutation(msg mutationMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if msg.book.ID > 0 {
			m.setFlash(fmt.Sprintf("%s #%d failed: %v", msg.action, msg.book.ID, msg.err), true)
		} else {
			m.setFlash(fmt.Sprintf("%s failed: %v", msg.action, msg.err), true)
		}
		return m, nil
	}
	text := fmt.Sprintf("%s #%d", pastTense[msg.action], msg.book.ID)
	if msg.book.Title != "" {
		text += " " + msg.book.Title
	}
	m.setFlash(text, false)
	if msg.action == "delete" && m.mode == modeDetail {
		m.mode = modeList
		m.state.ClearSelection()
	}
	cmds := []tea.Cmd{m.refresh()}
	if m.mode == modeDetail && m.snap.Selection.ID == msg.book.ID {
		cmds = append(cmds, m.selectBook(msg.book.ID))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleSync(msg syncDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setFlash("sync failed: "+msg.err.Error(), true)
		return m, nil
	}
	up, down := msg.res.Upload, msg.res.Download
	text := fmt.Sprintf("Synced: %d created, %d updated, %d pulled", up.Created, up.Updated, down.Stored)
	if up.Rekeyed > 0 {
		text += fmt.Sprintf(", %d re-keyed", up.Rekeyed)
	}
	if failed := len(up.Failures) + len(down.Failures); failed > 0 {
		text += fmt.Sprintf(", %d failed", failed)
	}
	m.setFlash(text, !msg.res.OK())
	return m, m.refresh()
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		return m.handleFilterKey(msg)
	}

	if key.Matches(msg, m.keys.Quit) {
		m.Close()
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		return m, nil
	}

	switch m.mode {
	case modeConfirm:
		return m.handleConfirmKey(msg)
	case modeCart:
		return m.handleCartKey(msg)
	case modeDetail:
		return m.handleDetailKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.visible()
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Open):
		if b, ok := m.current(); ok {
			m.mode = modeDetail
			return m, m.selectBook(b.ID)
		}
	case key.Matches(msg, m.keys.Back):
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.cursor = 0
		}
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.Sync):
		m.setFlash("Syncing...", false)
		return m, m.runSync()
	case key.Matches(msg, m.keys.New):
		return m.openForm(NewBookForm())
	case key.Matches(msg, m.keys.Edit):
		if b, ok := m.current(); ok {
			return m.openForm(NewEditForm(b))
		}
	case key.Matches(msg, m.keys.Delete):
		if b, ok := m.current(); ok {
			m.prevMode = m.mode
			m.mode = modeConfirm
			m.confirmID = b.ID
		}
	case key.Matches(msg, m.keys.AddCart):
		if b, ok := m.current(); ok {
			m.addToCart(b)
		}
	case key.Matches(msg, m.keys.Cart):
		m.mode = modeCart
		m.cartCursor = 0
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sel := m.snap.Selection
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = modeList
		m.state.ClearSelection()
		m.snap = m.state.Snapshot()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.selectBook(sel.ID)
	case key.Matches(msg, m.keys.Edit):
		if sel.Status == state.Succeeded {
			return m.openForm(NewEditForm(sel.Book))
		}
	case key.Matches(msg, m.keys.Delete):
		if sel.Status == state.Succeeded {
			m.prevMode = m.mode
			m.mode = modeConfirm
			m.confirmID = sel.ID
		}
	case key.Matches(msg, m.keys.AddCart):
		if sel.Status == state.Succeeded {
			m.addToCart(sel.Book)
		}
	}
	return m, nil
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.confirmID
	m.mode = m.prevMode
	m.confirmID = 0
	if key.Matches(msg, m.keys.Confirm) {
		return m, m.deleteBook(id)
	}
	m.setFlash("Delete cancelled", false)
	return m, nil
}

func (m Model) handleCartKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.cart.Entries()
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Cart):
		m.mode = modeList
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cartCursor < len(entries)-1 {
			m.cartCursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.cartCursor > 0 {
			m.cartCursor--
		}
		return m, nil
	}

	if m.cartCursor >= len(entries) {
		return m, nil
	}
	id := entries[m.cartCursor].Book.ID
	switch {
	case key.Matches(msg, m.keys.Inc):
		m.cart.Increment(id)
	case key.Matches(msg, m.keys.Dec):
		m.cart.Decrement(id)
	case key.Matches(msg, m.keys.Remove):
		m.cart.Remove(id)
		if m.cartCursor > 0 && m.cartCursor >= len(m.cart.Entries()) {
			m.cartCursor--
		}
	default:
		return m, nil
	}
	m.saveCart()
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.cursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.clampCursor()
	return m, cmd
}

func (m Model) openForm(f *BookForm) (tea.Model, tea.Cmd) {
	m.prevMode = m.mode
	m.mode = modeForm
	m.form = f
	return m, f.Form.Init()
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEsc {
		m.mode = m.prevMode
		m.form = nil
		return m, nil
	}

	form, cmd := m.form.Form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form.Form = f
	}

	switch m.form.Form.State {
	case huh.StateCompleted:
		return m.submitForm()
	case huh.StateAborted:
		m.mode = m.prevMode
		m.form = nil
		return m, nil
	}
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	f := m.form
	m.mode = m.prevMode
	m.form = nil

	fields, err := f.Fields()
	if err != nil {
		m.setFlash(err.Error(), true)
		return m, nil
	}
	if f.Mode == FormModeEdit {
		return m, m.updateBook(f.BookID, fields)
	}
	return m, m.addBook(fields)
}

func (m *Model) addToCart(b models.Book) {
	m.cart.Add(b, 1)
	m.saveCart()
	if !m.flashErr {
		m.setFlash(fmt.Sprintf("Added %q to cart (%d items)", b.Title, m.cart.Count()), false)
	}
}

func (m *Model) saveCart() {
	m.flashErr = false
	if m.opts.CartPath == "" {
		return
	}
	if err := m.cart.Save(m.opts.CartPath); err != nil {
		slog.Warn("save cart", "err", err)
		m.setFlash("could not save cart: "+err.Error(), true)
	}
}

// visible returns the items matching the title filter.
func (m Model) visible() []models.Book {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if q == "" {
		return m.snap.Items
	}
	var out []models.Book
	for _, b := range m.snap.Items {
		if strings.Contains(strings.ToLower(b.Title), q) {
			out = append(out, b)
		}
	}
	return out
}

func (m Model) current() (models.Book, bool) {
	items := m.visible()
	if m.cursor < 0 || m.cursor >= len(items) {
		return models.Book{}, false
	}
	return items[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, svc Service, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(ctx, svc, opts)
	if opts.Prober != nil {
		interval := opts.ProbeInterval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		go connectivity.Watch(ctx, opts.Prober, interval, m.State().SetOnline)
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	m.Close()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running browser: %w", err)
	}
	return nil
}
