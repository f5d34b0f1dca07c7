package mediaidx

// reorderDecodeOrder operates on a video track's frames while they are
// still in decode order (matching
// OriginalPos == index) and turns decode-order B-frame PTS values into
// presentation-order PTS values in place, so that a subsequent PTS sort
// yields presentation order.
//
// Three cases leave the frames untouched:
//   - some PTS is lower than its predecessor, meaning the track already
//     carries presentation timestamps rather than decode timestamps;
//   - no frame is typed B, so decode order already equals presentation
//     order;
//   - two consecutive frames are both typed B, which this algorithm
//     cannot reorder correctly.
func reorderDecodeOrder(frames []FrameInfo) {
	hasB := false
	for i := 1; i < len(frames); i++ {
		if frames[i].PTS < frames[i-1].PTS {
			return
		}
		if frames[i].FrameType == FrameB {
			hasB = true
			if frames[i-1].FrameType == FrameB {
				return
			}
		}
	}

	if !hasB {
		return
	}

	for i := 1; i < len(frames); i++ {
		if frames[i].FrameType == FrameB {
			frames[i].PTS, frames[i-1].PTS = frames[i-1].PTS, frames[i].PTS
		}
	}
}
