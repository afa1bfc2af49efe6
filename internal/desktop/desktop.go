// Package desktop is a fyne front end over the same workflow controller the
// portal uses.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"

	"github.com/UnendingLoop/PolypSegmentation/internal/model"
	"github.com/UnendingLoop/PolypSegmentation/internal/segclient"
	"github.com/UnendingLoop/PolypSegmentation/internal/web"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

type Workflow interface {
	SelectImage(ctx context.Context, img model.SelectedImage) (model.State, error)
	RunSegmentation(ctx context.Context) (model.State, error)
	Snapshot() model.State
	Subscribe() (<-chan model.State, func())
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp"}

type PortalApp struct {
	fyneApp fyne.App
	mainWin fyne.Window
	wf      Workflow

	tabs         *container.AppTabs
	fileLabel    *widget.Label
	previewImage *canvas.Image
	runButton    *widget.Button
	errorLabel   *widget.Label
	resultBox    *fyne.Container
	resultImage  *canvas.Image

	shownResult string
}

func CreateApp(wf Workflow, th model.Theme) *PortalApp {
	a := app.New()
	a.Settings().SetTheme(newPaletteTheme(th))
	return newPortalApp(a, wf)
}

func newPortalApp(a fyne.App, wf Workflow) *PortalApp {
	w := a.NewWindow("Polyp Segmentation Portal")
	w.Resize(fyne.NewSize(900, 700))

	p := &PortalApp{
		fyneApp: a,
		mainWin: w,
		wf:      wf,
	}
	w.SetContent(p.build())
	p.apply(wf.Snapshot())
	return p
}

// Run blocks until the window is closed.
func (p *PortalApp) Run() {
	events, unsubscribe := p.wf.Subscribe()
	defer unsubscribe()

	go func() {
		for st := range events {
			fyne.Do(func() {
				p.apply(st)
			})
		}
	}()

	p.mainWin.CenterOnScreen()
	p.mainWin.ShowAndRun()
}

func (p *PortalApp) build() fyne.CanvasObject {
	p.fileLabel = widget.NewLabel("No image selected")
	p.fileLabel.Truncation = fyne.TextTruncateEllipsis

	p.previewImage = canvas.NewImageFromResource(nil)
	p.previewImage.FillMode = canvas.ImageFillContain
	p.previewImage.SetMinSize(fyne.NewSize(320, 240))
	p.previewImage.Hide()

	p.runButton = widget.NewButtonWithIcon("Run Segmentation", theme.MediaPlayIcon(), p.runSegmentation)

	p.errorLabel = widget.NewLabel("")
	p.errorLabel.Importance = widget.DangerImportance
	p.errorLabel.Wrapping = fyne.TextWrapWord
	p.errorLabel.Hide()

	p.resultImage = canvas.NewImageFromResource(nil)
	p.resultImage.FillMode = canvas.ImageFillContain
	p.resultImage.SetMinSize(fyne.NewSize(320, 240))
	p.resultBox = container.NewVBox(
		widget.NewLabelWithStyle("Segmentation Result:", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		p.resultImage,
	)
	p.resultBox.Hide()

	openButton := widget.NewButtonWithIcon("Open Image", theme.FolderOpenIcon(), p.openImage)

	upload := container.NewVScroll(container.NewVBox(
		widget.NewLabelWithStyle("Upload Colonoscopy Image", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		container.NewBorder(nil, nil, nil, openButton, p.fileLabel),
		p.previewImage,
		widget.NewSeparator(),
		p.runButton,
		p.errorLabel,
		p.resultBox,
	))

	p.tabs = container.NewAppTabs(
		container.NewTabItem("Home", textPage(
			"Automated Polyp Segmentation",
			"Upload colonoscopy images and automatically detect and segment polyps using advanced AI-based segmentation models.",
		)),
		container.NewTabItem("Upload", upload),
		container.NewTabItem("Demo", textPage(
			"Explore the Demo",
			"1. Upload: choose a colonoscopy image to start the segmentation workflow.\n"+
				"2. Process: the image is sent to the segmentation model.\n"+
				"3. Visualize: view the segmented image with highlighted polyps.",
		)),
		container.NewTabItem("About", textPage(
			"About this Project",
			"An interface for colon polyp segmentation research. It can be integrated with AI inference APIs or used as a demonstration tool.",
		)),
	)
	return p.tabs
}

func textPage(title, body string) fyne.CanvasObject {
	text := widget.NewLabel(body)
	text.Wrapping = fyne.TextWrapWord
	return container.NewVBox(
		widget.NewLabelWithStyle(title, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		text,
	)
}

func (p *PortalApp) openImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, p.mainWin)
			return
		}
		if reader == nil {
			return
		}
		defer func() {
			_ = reader.Close()
		}()

		data, err := io.ReadAll(reader)
		if err != nil {
			dialog.ShowError(err, p.mainWin)
			return
		}

		img := model.SelectedImage{
			FileName:  reader.URI().Name(),
			MediaType: reader.URI().MimeType(),
			Data:      data,
		}
		p.selectImage(img)
	}, p.mainWin)
	fd.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	fd.Show()
}

func (p *PortalApp) selectImage(img model.SelectedImage) {
	st, err := p.wf.SelectImage(context.Background(), img)
	if err != nil {
		dialog.ShowError(err, p.mainWin)
		return
	}

	p.previewImage.Resource = fyne.NewStaticResource(img.FileName, img.Data)
	p.previewImage.Show()
	p.previewImage.Refresh()
	p.apply(st)
}

func (p *PortalApp) runSegmentation() {
	// кнопка сразу гаснет, итог придет через подписку
	p.runButton.Disable()
	go func() {
		if _, err := p.wf.RunSegmentation(context.Background()); errors.Is(err, model.ErrRequestInFlight) {
			log.Println("Segmentation already in progress")
		}
	}()
}

// apply must run on the fyne goroutine.
func (p *PortalApp) apply(st model.State) {
	if st.FileName != "" {
		p.fileLabel.SetText(st.FileName)
	}

	if st.CanSubmit {
		p.runButton.SetText("Run Segmentation")
		p.runButton.Enable()
	} else {
		p.runButton.SetText("Processing...")
		p.runButton.Disable()
	}

	if st.Error != "" {
		p.errorLabel.SetText(st.Error)
		p.errorLabel.Show()
	} else {
		p.errorLabel.SetText("")
		p.errorLabel.Hide()
	}

	p.showResult(st.Result)
}

func (p *PortalApp) showResult(res *model.SegmentationResult) {
	if res == nil {
		p.shownResult = ""
		p.resultImage.Resource = nil
		p.resultBox.Hide()
		return
	}
	if res.Source == p.shownResult {
		return
	}
	p.shownResult = res.Source

	switch res.Kind {
	case model.ResultInline:
		data, err := segclient.DecodeInline(*res)
		if err != nil {
			p.errorLabel.SetText(err.Error())
			p.errorLabel.Show()
			return
		}
		p.setResult(fyne.NewStaticResource("segmentation"+model.FileExt(res.MediaType), data))
	default:
		src := res.Source
		go func() {
			resource, err := fyne.LoadResourceFromURLString(src)
			fyne.Do(func() {
				// пока грузили, результат мог смениться
				if p.shownResult != src {
					return
				}
				if err != nil {
					p.errorLabel.SetText(fmt.Sprintf("failed to load result: %v", err))
					p.errorLabel.Show()
					return
				}
				p.setResult(resource)
			})
		}()
	}
}

func (p *PortalApp) setResult(r fyne.Resource) {
	p.resultImage.Resource = r
	p.resultImage.Refresh()
	p.resultBox.Show()
}

// paletteTheme подкрашивает стандартную тему цветами выбранной палитры
type paletteTheme struct {
	fyne.Theme
	primary color.Color
}

func newPaletteTheme(th model.Theme) fyne.Theme {
	palette := web.Palettes[model.ParseTheme(string(th))]
	return &paletteTheme{Theme: theme.DefaultTheme(), primary: parseHex(palette.BarFrom)}
}

func (t *paletteTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if name == theme.ColorNamePrimary && t.primary != nil {
		return t.primary
	}
	return t.Theme.Color(name, variant)
}

func parseHex(s string) color.Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return nil
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}
