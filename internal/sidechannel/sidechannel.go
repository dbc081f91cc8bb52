// Package sidechannel implements the cross-process frame-fetch protocol: a
// single request/reply operation returning the latest published frame's
// metadata plus the shared-memory handle of its pixels.
package sidechannel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stagecam/stagecam/internal/bus"
	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/publish"
)

// FetchResponse is the wire shape of a frame-fetch reply. An empty stream is
// a valid, immediately-returned state (HasFrame=false), never an error.
type FetchResponse struct {
	HasFrame       bool   `json:"has_frame"`
	Handle         string `json:"handle,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	PixelFormat    string `json:"pixel_format,omitempty"`
	FrameIndex     int64  `json:"frame_index,omitempty"`
	PTSNumerator   int64  `json:"pts_numerator,omitempty"`
	PTSDenominator int64  `json:"pts_denominator,omitempty"`
	ColorSpaceName string `json:"color_space_name,omitempty"`
}

// Server answers frame-fetch requests out of the published-frame holder.
type Server struct {
	holder *publish.Holder
	sub    bus.Subscription
}

// Attach binds the fetch responder on the bus.
func Attach(b bus.Bus, holder *publish.Holder) (*Server, error) {
	s := &Server{holder: holder}

	sub, err := b.Respond(bus.SubjectFrameFetch, s.handleFetch)
	if err != nil {
		return nil, fmt.Errorf("failed to bind frame-fetch responder: %w", err)
	}
	s.sub = sub

	logger.WithComponent("sidechannel").Info().
		Str("subject", bus.SubjectFrameFetch).
		Msg("Frame-fetch responder attached")
	return s, nil
}

func (s *Server) handleFetch(_ []byte) ([]byte, error) {
	pf, ok := s.holder.Snapshot()
	if !ok {
		return json.Marshal(FetchResponse{HasFrame: false})
	}

	return json.Marshal(FetchResponse{
		HasFrame:       true,
		Handle:         pf.Handle,
		Width:          pf.Width,
		Height:         pf.Height,
		PixelFormat:    string(pf.Format),
		FrameIndex:     pf.Index,
		PTSNumerator:   pf.PTSNum,
		PTSDenominator: pf.PTSDen,
		ColorSpaceName: pf.ColorSpace,
	})
}

// Detach removes the responder.
func (s *Server) Detach() {
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
}

// Fetch is the client side of the protocol, used by the companion preview
// process to pull the current frame descriptor.
func Fetch(b bus.Bus, timeout time.Duration) (*FetchResponse, error) {
	data, err := b.Request(bus.SubjectFrameFetch, nil, timeout)
	if err != nil {
		return nil, err
	}

	var resp FetchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("malformed fetch response: %w", err)
	}
	return &resp, nil
}
