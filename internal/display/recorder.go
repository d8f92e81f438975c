package display

import "sync"

// Recorder captures frames for tests. It implements Screen and Matrix.
type Recorder struct {
	mu     sync.Mutex
	frames [][]string
	matrix []int
}

func (r *Recorder) Draw(lines []string) error {
	r.mu.Lock()
	r.frames = append(r.frames, append([]string(nil), lines...))
	r.mu.Unlock()
	return nil
}

func (r *Recorder) ShowFrame(frame int) error {
	r.mu.Lock()
	r.matrix = append(r.matrix, frame)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Frames() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.frames...)
}

func (r *Recorder) Last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

func (r *Recorder) MatrixFrames() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.matrix...)
}
