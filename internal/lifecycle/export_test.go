package lifecycle

// SetRecorder attaches a state recorder to m
func SetRecorder(m *Machine, r *StateRecorder) {
	m.recorder = r
}
