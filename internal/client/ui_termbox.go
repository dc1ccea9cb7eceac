package client

import (
	"context"
	"fmt"

	"github.com/nsf/termbox-go"

	"calib-bridge/internal/network"
)

const maxHistory = 200

type historyEntry struct {
	text string
	fg   termbox.Attribute
}

// TermboxUI is an interactive console: type a line and press Enter to send it,
// Tab sends the next token of the calibration script, Esc quits.
type TermboxUI struct {
	client *Client

	history    []historyEntry
	inputLine  []rune
	scriptNext int
	status     string
}

// NewTermboxUI creates a console bound to a connected client.
func NewTermboxUI(c *Client) *TermboxUI {
	return &TermboxUI{client: c, status: "connected to " + c.Address}
}

// Init initializes the termbox screen.
func (ui *TermboxUI) Init() error {
	return termbox.Init()
}

// Close closes the termbox screen.
func (ui *TermboxUI) Close() {
	termbox.Close()
}

// DisplayStaticText draws text starting at the given cell.
func (ui *TermboxUI) DisplayStaticText(x, y int, text string, fg, bg termbox.Attribute) {
	for i, r := range []rune(text) {
		termbox.SetCell(x+i, y, r, fg, bg)
	}
}

func (ui *TermboxUI) addHistory(text string, fg termbox.Attribute) {
	ui.history = append(ui.history, historyEntry{text: text, fg: fg})
	if len(ui.history) > maxHistory {
		ui.history = ui.history[len(ui.history)-maxHistory:]
	}
}

// Render draws the whole screen.
func (ui *TermboxUI) Render() {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	_, height := termbox.Size()

	ui.DisplayStaticText(1, 0, ui.status, termbox.ColorWhite, termbox.ColorDefault)
	script := network.CalibrationScript()
	next := "done"
	if ui.scriptNext < len(script) {
		next = fmt.Sprintf("%q", script[ui.scriptNext])
	}
	ui.DisplayStaticText(1, 1, "Enter: send | Tab: next calibration token ("+next+") | Esc: quit",
		termbox.ColorCyan, termbox.ColorDefault)

	// History fills the middle, newest at the bottom.
	rows := height - 5
	start := 0
	if len(ui.history) > rows {
		start = len(ui.history) - rows
	}
	for i, e := range ui.history[start:] {
		ui.DisplayStaticText(1, 3+i, e.text, e.fg, termbox.ColorDefault)
	}

	prompt := "> " + string(ui.inputLine)
	ui.DisplayStaticText(1, height-1, prompt, termbox.ColorWhite, termbox.ColorDefault)
	termbox.SetCursor(1+len([]rune(prompt)), height-1)

	termbox.Flush()
}

func (ui *TermboxUI) send(line string) {
	if err := ui.client.Send(line); err != nil {
		ui.addHistory("send failed: "+err.Error(), termbox.ColorRed)
		return
	}
	ui.addHistory("-> "+line, termbox.ColorYellow)
}

// Run drives the console until Esc, ctx cancellation or the server closing the connection.
// All termbox drawing happens on the calling goroutine.
func (ui *TermboxUI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	acks := make(chan string)
	listenErr := make(chan error, 1)
	go func() { listenErr <- ui.client.ListenForAcks(ctx, acks) }()

	events := make(chan termbox.Event)
	go func() {
		for {
			ev := termbox.PollEvent()
			if ev.Type == termbox.EventInterrupt {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer termbox.Interrupt()

	ui.Render()
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-acks:
			if !ok {
				ui.status = "server closed the connection (Esc to quit)"
				acks = nil
				if err := <-listenErr; err != nil {
					ui.addHistory("read failed: "+err.Error(), termbox.ColorRed)
				}
			} else {
				ui.addHistory("<- "+network.AckPrefix+line, termbox.ColorGreen)
			}

		case ev := <-events:
			switch ev.Type {
			case termbox.EventKey:
				switch ev.Key {
				case termbox.KeyEsc:
					return nil
				case termbox.KeyEnter:
					ui.send(string(ui.inputLine))
					ui.inputLine = ui.inputLine[:0]
				case termbox.KeyTab:
					script := network.CalibrationScript()
					if ui.scriptNext < len(script) {
						ui.send(script[ui.scriptNext])
						ui.scriptNext++
					}
				case termbox.KeySpace:
					ui.inputLine = append(ui.inputLine, ' ')
				case termbox.KeyBackspace, termbox.KeyBackspace2:
					if len(ui.inputLine) > 0 {
						ui.inputLine = ui.inputLine[:len(ui.inputLine)-1]
					}
				default:
					if ev.Ch != 0 {
						ui.inputLine = append(ui.inputLine, ev.Ch)
					}
				}
			case termbox.EventError:
				return fmt.Errorf("termbox: %w", ev.Err)
			}
		}
		ui.Render()
	}
}
