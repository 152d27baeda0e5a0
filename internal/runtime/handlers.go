package runtime

import (
	"fmt"

	catalogpkg "github.com/streamgate/streamgate/internal/runtime/catalog"
	envelopepkg "github.com/streamgate/streamgate/internal/runtime/envelope"
)

// HandlerSet binds typed callbacks to the event catalog. Every field is
// optional; events without a handler are ignored. The set is replaced
// wholesale on each new request, so callbacks always close over the state of
// the generation that is actually running.
type HandlerSet struct {
	OnMessageStart    func(catalogpkg.MessageStart)
	OnMessageChunk    func(catalogpkg.MessageChunk)
	OnToolStart       func(catalogpkg.ToolStart)
	OnToolComplete    func(catalogpkg.ToolComplete)
	OnSessionComplete func(catalogpkg.SessionComplete)
	OnError           func(catalogpkg.SessionError)
}

// dispatch decodes the envelope payload against the catalog shape for its
// type and invokes the matching callback. Unknown event types are ignored so
// newer backends can emit events older frontends do not understand yet.
func (h HandlerSet) dispatch(env envelopepkg.Envelope) error {
	switch env.Type {
	case catalogpkg.EventMessageStart:
		if h.OnMessageStart == nil {
			return nil
		}
		var p catalogpkg.MessageStart
		if err := env.DecodeData(&p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		h.OnMessageStart(p)
	case catalogpkg.EventMessageChunk:
		if h.OnMessageChunk == nil {
			return nil
		}
		var p catalogpkg.MessageChunk
		if err := env.DecodeData(&p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		h.OnMessageChunk(p)
	case catalogpkg.EventToolStart:
		if h.OnToolStart == nil {
			return nil
		}
		var p catalogpkg.ToolStart
		if err := env.DecodeData(&p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		h.OnToolStart(p)
	case catalogpkg.EventToolComplete:
		if h.OnToolComplete == nil {
			return nil
		}
		var p catalogpkg.ToolComplete
		if err := env.DecodeData(&p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		h.OnToolComplete(p)
	case catalogpkg.EventSessionComplete:
		if h.OnSessionComplete == nil {
			return nil
		}
		var p catalogpkg.SessionComplete
		if err := env.DecodeData(&p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		h.OnSessionComplete(p)
	case catalogpkg.EventSessionError:
		if h.OnError == nil {
			return nil
		}
		var p catalogpkg.SessionError
		if err := env.DecodeData(&p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		h.OnError(p)
	}
	return nil
}
