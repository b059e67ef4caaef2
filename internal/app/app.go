package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/rs/zerolog"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/invertify"
	"github.com/soypat/invertify/filters"
	"github.com/soypat/invertify/internal/config"
	"github.com/soypat/invertify/session"
	"github.com/soypat/invertify/viewer"
	"github.com/sqweek/dialog"
	imgclip "golang.design/x/clipboard"
)

const (
	toolbarH  = 40
	statusH   = 24
	panelGap  = 12
	titleH    = 20
	buttonH   = 24
	buttonPad = 8
	// DebugPrint glyph width.
	glyphW = 6
)

var (
	colorBackground = color.RGBA{R: 243, G: 244, B: 246, A: 255}
	colorPanel      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBorder     = color.RGBA{R: 209, G: 213, B: 219, A: 255}
	colorButton     = color.RGBA{R: 59, G: 130, B: 246, A: 255}
	colorDisabled   = color.RGBA{R: 156, G: 163, B: 175, A: 255}
	colorModal      = color.RGBA{R: 0, G: 0, B: 0, A: 230}
	colorError      = color.RGBA{R: 220, G: 38, B: 38, A: 255}
)

type rect struct {
	x int
	y int
	w int
	h int
}

func (r rect) contains(x, y int) bool {
	return x >= r.x && y >= r.y && x < r.x+r.w && y < r.y+r.h
}

func (r rect) image() image.Rectangle { return image.Rect(r.x, r.y, r.x+r.w, r.y+r.h) }

type actionButton struct {
	id      string
	label   string
	r       rect
	enabled bool
}

// frameKey identifies the content of the rendered modal frame.
type frameKey struct {
	gen   uint64
	title string
	zoom  float32
	pan   ms2.Vec
	w, h  int
}

// Options configures an [App].
type Options struct {
	Config   *config.Config
	Inverter filters.Inverter
	Logger   zerolog.Logger
}

// App is the desktop front end: a window with the original and inverted
// images side by side and a magnified view for inspecting either of them.
type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	ctrl     *session.Controller
	gestures viewer.Gestures

	status    string
	savedPath string

	screenW int
	screenH int

	topActions   []actionButton
	modalActions []actionButton
	panels       [2]rect
	zoomTrack    rect
	sliding      bool

	// Panel images of generation imagesGen in phase imagesPhase.
	imagesGen   uint64
	imagesPhase session.Phase
	images      [2]*ebiten.Image

	// Magnified view frame, rendered on the CPU and uploaded when frameKey changes.
	frame     *image.RGBA
	canvas    *ebiten.Image
	lastFrame frameKey
	viewRect  image.Rectangle

	touchIDs    []ebiten.TouchID
	touchPoints []ms2.Vec
	touches     viewer.TouchTracker

	clipOnce sync.Once
	clipErr  error
}

// New returns an app without a selected image.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	ctrl, err := session.NewController(session.Config{
		Policy:   cfg.Policy(),
		Encode:   cfg.EncodeOptions(),
		Limits:   cfg.Limits(),
		Inverter: opts.Inverter,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	gestures := viewer.Gestures{S: ctrl.Viewer()}
	return &App{
		cfg:          cfg,
		log:          opts.Logger.With().Str("component", "app").Logger(),
		ctrl:         ctrl,
		gestures:     gestures,
		touches:      viewer.TouchTracker{Sink: gestures},
		status:       "Open or drop a JPG, PNG or GIF image",
		topActions:   make([]actionButton, 0, 5),
		modalActions: make([]actionButton, 0, 5),
	}, nil
}

// Controller returns the session controller backing the app.
func (a *App) Controller() *session.Controller { return a.ctrl }

// Run opens the window and blocks until it is closed.
func (a *App) Run() error {
	ebiten.SetWindowTitle("Invertify")
	ebiten.SetWindowSize(a.cfg.Window.Width, a.cfg.Window.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(480, 320, -1, -1)
	defer a.ctrl.Reset()
	if err := ebiten.RunGame(a); err != nil {
		return fmt.Errorf("run game loop: %w", err)
	}
	return nil
}

// OpenPath selects the image at path.
func (a *App) OpenPath(path string) error {
	f, err := session.FileFromPath(path, a.cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}
	return a.selectFile(f)
}

func (a *App) selectFile(f session.File) error {
	if err := a.ctrl.Select(f); err != nil {
		a.status = invertify.UserMessage(err)
		return err
	}
	a.status = "Processing " + f.Name
	return nil
}

func (a *App) Update() error {
	a.handleDrop()
	snap := a.ctrl.Snapshot()
	a.syncImages(snap)
	if a.ctrl.Viewer().State().IsOpen() {
		a.updateViewer()
		a.updateCursor()
		return nil
	}
	a.updateMain(snap)
	return nil
}

func (a *App) handleDrop() {
	files := ebiten.DroppedFiles()
	if files == nil {
		return
	}
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		a.log.Warn().Err(err).Msg("read dropped files")
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(files, e.Name())
		if err != nil {
			a.status = "Drop failed: " + err.Error()
			return
		}
		_ = a.selectFile(session.FileFromBytes(e.Name(), data))
		return
	}
}

// syncImages uploads the panel images once per processed generation.
func (a *App) syncImages(snap session.Snapshot) {
	if snap.Generation == a.imagesGen && snap.Phase == a.imagesPhase {
		return
	}
	for i, img := range a.images {
		if img != nil {
			img.Deallocate()
			a.images[i] = nil
		}
	}
	a.imagesGen, a.imagesPhase = snap.Generation, snap.Phase
	switch snap.Phase {
	case session.PhaseReady:
		a.images[session.KindOriginal] = ebiten.NewImageFromImage(snap.Original.NRGBA())
		a.images[session.KindInverted] = ebiten.NewImageFromImage(snap.Inverted.NRGBA())
		a.status = fmt.Sprintf("%s (%s, %dx%d)", snap.Name, snap.Format, snap.Original.Width, snap.Original.Height)
	case session.PhaseFailed:
		a.status = snap.Message()
	}
}

func (a *App) updateMain(snap session.Snapshot) {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta)
	shift := ebiten.IsKeyPressed(ebiten.KeyShift)

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyO):
		a.invokeAction("open")
	case ctrl && inpututil.IsKeyJustPressed(ebiten.KeyS):
		a.invokeAction("save")
	case ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyC):
		a.invokeAction("copy_path")
	case ctrl && inpututil.IsKeyJustPressed(ebiten.KeyC):
		a.invokeAction("copy_image")
	case inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		a.invokeAction("reset")
	case inpututil.IsKeyJustPressed(ebiten.KeyDigit1):
		a.openViewer(session.KindOriginal)
	case inpututil.IsKeyJustPressed(ebiten.KeyDigit2):
		a.openViewer(session.KindInverted)
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		a.clickMain(x, y, snap)
	}
	for _, id := range inpututil.AppendJustPressedTouchIDs(nil) {
		x, y := ebiten.TouchPosition(id)
		a.clickMain(x, y, snap)
	}
}

func (a *App) clickMain(x, y int, snap session.Snapshot) {
	for _, b := range a.topActions {
		if b.enabled && b.r.contains(x, y) {
			a.invokeAction(b.id)
			return
		}
	}
	if snap.Phase != session.PhaseReady {
		return
	}
	for kind, p := range a.panels {
		if p.contains(x, y) {
			a.openViewer(session.ImageKind(kind))
			return
		}
	}
}

func (a *App) openViewer(kind session.ImageKind) {
	if err := a.ctrl.OpenViewer(kind); err != nil {
		a.status = err.Error()
		return
	}
	a.touches.Reset()
	a.sliding = false
	a.lastFrame = frameKey{}
}

func (a *App) updateViewer() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.invokeAction("close")
		return
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd):
		a.invokeAction("zoom_in")
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract):
		a.invokeAction("zoom_out")
	case inpututil.IsKeyJustPressed(ebiten.KeyDigit0) || inpututil.IsKeyJustPressed(ebiten.KeyKP0):
		a.invokeAction("reset_view")
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		a.invokeAction("toggle")
	}

	// Ebiten reports scrolling up as a positive offset, the gesture adapter
	// takes the browser convention.
	if _, wy := ebiten.Wheel(); wy != 0 {
		a.gestures.Wheel(-wy)
	}

	x, y := ebiten.CursorPosition()
	p := ms2.Vec{X: float32(x), Y: float32(y)}
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		for _, b := range a.modalActions {
			if b.r.contains(x, y) {
				if b.enabled {
					a.invokeAction(b.id)
				}
				return
			}
		}
		if a.zoomTrack.contains(x, y) {
			a.sliding = true
			a.slideZoom(x)
			return
		}
		if !image.Pt(x, y).In(a.viewRect) {
			a.invokeAction("close")
			return
		}
		a.gestures.MouseDown(p)
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		if a.sliding {
			a.slideZoom(x)
		} else {
			a.gestures.MouseMove(p)
		}
	case inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		a.sliding = false
		a.gestures.MouseUp()
	}

	a.touchIDs = ebiten.AppendTouchIDs(a.touchIDs[:0])
	a.touchPoints = a.touchPoints[:0]
	for _, id := range a.touchIDs {
		tx, ty := ebiten.TouchPosition(id)
		a.touchPoints = append(a.touchPoints, ms2.Vec{X: float32(tx), Y: float32(ty)})
	}
	a.touches.Update(a.touchPoints)
}

func (a *App) updateCursor() {
	vs := a.ctrl.Viewer()
	x, y := ebiten.CursorPosition()
	shape := ebiten.CursorShapeDefault
	switch {
	case vs.IsDragging():
		shape = ebiten.CursorShapeMove
	case vs.CanPan() && image.Pt(x, y).In(a.viewRect):
		shape = ebiten.CursorShapePointer
	}
	ebiten.SetCursorShape(shape)
}

func (a *App) invokeAction(id string) {
	vs := a.ctrl.Viewer()
	switch id {
	case "open":
		if err := a.openDialog(); err != nil && !errors.Is(err, dialog.ErrCancelled) {
			a.status = "Open failed: " + err.Error()
		}
	case "save":
		if err := a.saveDialog(); err != nil && !errors.Is(err, dialog.ErrCancelled) {
			a.status = "Save failed: " + err.Error()
		}
	case "copy_image":
		if err := a.copyImage(); err != nil {
			a.status = "Copy failed: " + err.Error()
		} else {
			a.status = "Inverted image copied to clipboard"
		}
	case "copy_path":
		if err := a.copyPath(); err != nil {
			a.status = "Copy failed: " + err.Error()
		} else {
			a.status = "Copied " + a.savedPath
		}
	case "reset":
		a.ctrl.Reset()
		a.savedPath = ""
		a.status = "Open or drop a JPG, PNG or GIF image"
	case "close":
		a.ctrl.CloseViewer()
		ebiten.SetCursorShape(ebiten.CursorShapeDefault)
	case "zoom_in":
		_ = vs.ZoomIn()
	case "zoom_out":
		_ = vs.ZoomOut()
	case "reset_view":
		_ = vs.ResetView()
	case "toggle":
		kind, ok := findControl[*invertify.ControlEnum[session.ImageKind]](a.ctrl.Controls())
		if !ok {
			return
		}
		if err := a.ctrl.SetViewKind(kind.Next()); err != nil {
			a.log.Debug().Err(err).Msg("toggle view")
		}
	}
}

func (a *App) openDialog() error {
	path, err := dialog.File().Filter("Images", "jpg", "jpeg", "png", "gif").Title("Select an image").Load()
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("no file selected")
	}
	err = a.OpenPath(filepath.Clean(path))
	var verr *invertify.ValidationError
	if errors.As(err, &verr) {
		// Already reported in the status line.
		return nil
	}
	return err
}

func (a *App) saveDialog() error {
	name, data, err := a.ctrl.Download()
	if err != nil {
		return err
	}
	b := dialog.File().Filter("PNG image", "png").Title("Save inverted image").SetStartFile(name)
	if a.cfg.Output.Dir != "" {
		b = b.SetStartDir(a.cfg.Output.Dir)
	}
	path, err := b.Save()
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New("no file selected")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	a.savedPath = path
	a.status = "Saved " + filepath.Base(path)
	a.log.Info().Str("path", path).Int("bytes", len(data)).Msg("exported image")
	return nil
}

func (a *App) copyImage() error {
	_, data, err := a.ctrl.Download()
	if err != nil {
		return err
	}
	a.clipOnce.Do(func() { a.clipErr = imgclip.Init() })
	if a.clipErr != nil {
		return a.clipErr
	}
	imgclip.Write(imgclip.FmtImage, data)
	return nil
}

func (a *App) copyPath() error {
	if a.savedPath == "" {
		return errors.New("save the image first")
	}
	return clipboard.WriteAll(a.savedPath)
}

func (a *App) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	a.screenW = outsideWidth
	a.screenH = outsideHeight
	a.layoutTopActions()
	a.layoutPanels()
	a.layoutModalActions()
	a.layoutZoomTrack()
	return outsideWidth, outsideHeight
}

func (a *App) layoutTopActions() {
	ready := a.ctrl.Snapshot().Phase == session.PhaseReady
	a.topActions = a.topActions[:0]
	x := panelGap
	for _, b := range []struct {
		id, label string
		enabled   bool
	}{
		{"open", "Open", true},
		{"save", "Download", ready},
		{"copy_image", "Copy image", ready},
		{"copy_path", "Copy path", a.savedPath != ""},
		{"reset", "Reset", true},
	} {
		w := len(b.label)*glyphW + 2*buttonPad
		a.topActions = append(a.topActions, actionButton{
			id: b.id, label: b.label, enabled: b.enabled,
			r: rect{x: x, y: (toolbarH - buttonH) / 2, w: w, h: buttonH},
		})
		x += w + buttonPad
	}
}

func (a *App) layoutPanels() {
	w := (a.screenW - 3*panelGap) / 2
	h := a.screenH - toolbarH - statusH - panelGap
	for i := range a.panels {
		a.panels[i] = rect{x: panelGap + i*(w+panelGap), y: toolbarH, w: max(w, 0), h: max(h, 0)}
	}
}

func (a *App) layoutZoomTrack() {
	a.zoomTrack = rect{x: panelGap, y: a.screenH - panelGap - buttonH, w: min(240, max(a.screenW-2*panelGap, 0)), h: buttonH}
}

func (a *App) layoutModalActions() {
	vs := a.ctrl.Viewer()
	a.modalActions = a.modalActions[:0]
	x := a.screenW - panelGap
	for _, b := range []struct {
		id, label string
		enabled   bool
	}{
		{"close", "Close", true},
		{"reset_view", "Reset", true},
		{"zoom_in", "+", vs.CanZoomIn()},
		{"zoom_out", "-", vs.CanZoomOut()},
		{"toggle", "Swap", true},
	} {
		w := len(b.label)*glyphW + 2*buttonPad
		x -= w
		a.modalActions = append(a.modalActions, actionButton{
			id: b.id, label: b.label, enabled: b.enabled,
			r: rect{x: x, y: panelGap, w: w, h: buttonH},
		})
		x -= buttonPad
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)
	a.drawButtons(screen, a.topActions)

	titles := [2]string{session.KindOriginal.String(), session.KindInverted.String()}
	for i, p := range a.panels {
		if p.w <= 0 || p.h <= titleH {
			continue
		}
		fillRect(screen, p, colorBorder)
		inner := rect{x: p.x + 1, y: p.y + 1, w: p.w - 2, h: p.h - 2}
		fillRect(screen, inner, colorPanel)
		ebitenutil.DebugPrintAt(screen, titles[i], p.x+buttonPad, p.y+4)
		if img := a.images[i]; img != nil {
			area := image.Rect(p.x, p.y+titleH, p.x+p.w, p.y+p.h)
			drawFitted(screen, img, viewer.Fit(area, img.Bounds().Size()))
		}
	}

	status := a.status
	if snap := a.ctrl.Snapshot(); snap.Phase == session.PhaseProcessing {
		status = "Processing " + snap.Name + "..."
	} else if snap.Err != nil {
		fillRect(screen, rect{x: 0, y: a.screenH - statusH, w: a.screenW, h: statusH}, colorError)
	}
	ebitenutil.DebugPrintAt(screen, status, panelGap, a.screenH-statusH+4)

	if a.ctrl.Viewer().State().IsOpen() {
		a.drawViewer(screen)
	}
}

func (a *App) drawViewer(screen *ebiten.Image) {
	vs := a.ctrl.Viewer()
	src := a.ctrl.ViewImage()
	if src == nil {
		return
	}
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	if a.frame == nil || a.frame.Rect.Dx() != w || a.frame.Rect.Dy() != h {
		a.frame = image.NewRGBA(image.Rect(0, 0, w, h))
		if a.canvas != nil {
			a.canvas.Deallocate()
		}
		a.canvas = ebiten.NewImage(w, h)
	}
	key := frameKey{gen: a.imagesGen, title: vs.Title(), zoom: vs.Zoom(), pan: vs.Pan(), w: w, h: h}
	if key != a.lastFrame {
		a.viewRect = viewer.Render(a.frame, src.NRGBA(), vs, colorModal)
		a.canvas.WritePixels(a.frame.Pix)
		a.lastFrame = key
	}
	screen.DrawImage(a.canvas, nil)

	a.drawButtons(screen, a.modalActions)
	ctrls := a.ctrl.Controls()
	label := controlsLabel(ctrls)
	if vs.CanPan() {
		label += "  drag to pan"
	}
	ebitenutil.DebugPrintAt(screen, label, panelGap, panelGap+4)
	if zoom, ok := findControl[*invertify.ControlOrdered[float32]](ctrls); ok {
		a.drawSlider(screen, a.zoomTrack, zoom)
	}
}

func (a *App) drawButtons(screen *ebiten.Image, buttons []actionButton) {
	for _, b := range buttons {
		c := colorButton
		if !b.enabled {
			c = colorDisabled
		}
		fillRect(screen, b.r, c)
		ebitenutil.DebugPrintAt(screen, b.label, b.r.x+buttonPad, b.r.y+(buttonH-16)/2)
	}
}

func fillRect(dst *ebiten.Image, r rect, c color.Color) {
	sub := r.image().Intersect(dst.Bounds())
	if sub.Empty() {
		return
	}
	dst.SubImage(sub).(*ebiten.Image).Fill(c)
}

func drawFitted(dst, img *ebiten.Image, r image.Rectangle) {
	if r.Empty() {
		return
	}
	sz := img.Bounds().Size()
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(r.Dx())/float64(sz.X), float64(r.Dy())/float64(sz.Y))
	op.GeoM.Translate(float64(r.Min.X), float64(r.Min.Y))
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(img, op)
}
