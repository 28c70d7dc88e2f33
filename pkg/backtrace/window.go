// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package backtrace

import (
	"fmt"
)

const (
	DefaultTopFrame    = 10000
	DefaultBottomFrame = 0
)

// Window selects the frames that participate in a signature:
// up to TopFrame frames starting from the innermost frame and
// up to BottomFrame frames starting from the outermost frame.
// If SourceOnly is set, frames without a known source file are dropped first.
type Window struct {
	TopFrame    int
	BottomFrame int
	SourceOnly  bool
}

func DefaultWindow() Window {
	return Window{
		TopFrame:    DefaultTopFrame,
		BottomFrame: DefaultBottomFrame,
	}
}

func (w Window) Validate() error {
	if w.TopFrame < 0 {
		return fmt.Errorf("negative top frame count %v", w.TopFrame)
	}
	if w.BottomFrame < 0 {
		return fmt.Errorf("negative bottom frame count %v", w.BottomFrame)
	}
	if w.TopFrame == 0 && w.BottomFrame == 0 {
		return fmt.Errorf("both top and bottom frame counts are 0, no frames to compare")
	}
	return nil
}

// Select returns the frames of bt inside the window.
// Frames counted from both ends never overlap: if the backtrace is shorter
// than TopFrame+BottomFrame, all frames are selected once.
func (w Window) Select(bt *Backtrace) []Frame {
	frames := bt.Frames
	if w.SourceOnly {
		frames = nil
		for _, frame := range bt.Frames {
			if frame.HasSource() {
				frames = append(frames, frame)
			}
		}
	}
	n := len(frames)
	top := min(w.TopFrame, n)
	bottom := max(n-w.BottomFrame, top)
	res := make([]Frame, 0, top+n-bottom)
	res = append(res, frames[:top]...)
	res = append(res, frames[bottom:]...)
	return res
}

func (w Window) Signature(bt *Backtrace) Signature {
	frames := w.Select(bt)
	sig := make(Signature, len(frames))
	for i := range frames {
		sig[i] = frames[i].Key()
	}
	return sig
}
