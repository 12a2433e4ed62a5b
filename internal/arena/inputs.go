package arena

import "math"

// ActionType enumerates the discrete action kinds of spec.md §4.10/§6.
type ActionType string

const (
	ActionSplit       ActionType = "split"
	ActionDoubleSplit ActionType = "doubleSplit"
	ActionTripleSplit ActionType = "tripleSplit"
	ActionSplit16     ActionType = "split16"
	ActionSplit32     ActionType = "split32"
	ActionFeed        ActionType = "feed"
	ActionMacroFeed   ActionType = "macroFeed"
	ActionStop        ActionType = "stop"
	ActionRespawn     ActionType = "respawn"
)

type messageKind int

const (
	msgInput messageKind = iota
	msgAction
	msgSetName
)

// inboundMessage is a decoded client message queued by the session layer
// and applied during the tick's input-drain phase (spec.md §5: "applied
// serially to world state on the tick thread").
type inboundMessage struct {
	kind     messageKind
	playerID int64

	dirX, dirY, cursorX, cursorY float64
	action                       ActionType
	name                         string
}

// QueueInput enqueues a decoded input message for the next tick's drain
// phase. Safe to call from any goroutine (spec.md §5: input decode may be
// offloaded; application to world state happens only on the tick thread).
func (w *World) QueueInput(playerID int64, dirX, dirY, cursorX, cursorY float64) {
	if !isFinite(dirX) || !isFinite(dirY) || !isFinite(cursorX) || !isFinite(cursorY) {
		return // invariant-violating input dropped (spec.md §7)
	}
	w.inputMu.Lock()
	w.inbox = append(w.inbox, inboundMessage{
		kind: msgInput, playerID: playerID,
		dirX: dirX, dirY: dirY, cursorX: cursorX, cursorY: cursorY,
	})
	w.inputMu.Unlock()
}

// QueueAction enqueues a discrete action message.
func (w *World) QueueAction(playerID int64, action ActionType) {
	w.inputMu.Lock()
	w.inbox = append(w.inbox, inboundMessage{kind: msgAction, playerID: playerID, action: action})
	w.inputMu.Unlock()
}

// QueueSetName enqueues a setName message.
func (w *World) QueueSetName(playerID int64, name string) {
	w.inputMu.Lock()
	w.inbox = append(w.inbox, inboundMessage{kind: msgSetName, playerID: playerID, name: name})
	w.inputMu.Unlock()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// drainInputs applies every queued message to world state. Called only at
// the start of Tick, under w.mu — this is the "input-drain phase"
// conceptually between ticks (spec.md §5). Caller must hold w.mu.
func (w *World) drainInputs() {
	w.inputMu.Lock()
	batch := w.inbox
	w.inbox = nil
	w.inputMu.Unlock()

	for _, m := range batch {
		p, ok := w.players[m.playerID]
		if !ok {
			continue // action on non-existent player: silently ignored (spec.md §7)
		}
		switch m.kind {
		case msgInput:
			p.InputDirX, p.InputDirY = m.dirX, m.dirY
			p.CursorX, p.CursorY = m.cursorX, m.cursorY
		case msgSetName:
			p.SetName(m.name)
		case msgAction:
			w.applyAction(p, m.action)
		}
	}
}

func (w *World) applyAction(p *Player, action ActionType) {
	dx, dy := unitDirection(0, 0, p.CursorX-0, p.CursorY-0)
	if c := largestCell(p.CellIDs, w.cells); c != nil {
		dx, dy = unitDirection(c.X, c.Y, p.CursorX, p.CursorY)
	}

	switch action {
	case ActionSplit:
		w.Split(p, 2)
	case ActionDoubleSplit:
		w.Split(p, 4)
	case ActionTripleSplit:
		w.Split(p, 8)
	case ActionSplit16:
		w.Split(p, 16)
	case ActionSplit32:
		w.Split(p, 32)
	case ActionFeed:
		w.Feed(p, dx, dy)
	case ActionMacroFeed:
		w.MacroFeed(p, dx, dy)
	case ActionStop:
		p.InputDirX, p.InputDirY = 0, 0
	case ActionRespawn:
		w.Respawn(p)
	default:
		// unknown action: ignored here without a log line. The session
		// layer forwards action names unchecked, so this is where they stop.
	}
}
