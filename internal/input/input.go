// Package input maps glfw keys and buttons to viewer actions.
package input

import (
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// Action is a logical viewer action, not a physical key.
type Action int

const (
	ActionMoveForward Action = iota
	ActionMoveBackward
	ActionMoveLeft
	ActionMoveRight
	ActionMoveUp
	ActionMoveDown
	ActionFast
	ActionPlaceBlock
	ActionBreakBlock
	ActionToggleWireframe
	ActionToggleStats
	ActionReload
	ActionQuit
	ActionCount // Sentinel value for array sizing
)

// Manager tracks held actions and their press/release edges per frame.
type Manager struct {
	mu sync.RWMutex

	keys    map[glfw.Key]Action
	buttons map[glfw.MouseButton]Action

	current      [ActionCount]bool
	justPressed  [ActionCount]bool
	justReleased [ActionCount]bool
}

// NewManager creates a manager with the default bindings.
func NewManager() *Manager {
	m := &Manager{
		keys:    make(map[glfw.Key]Action),
		buttons: make(map[glfw.MouseButton]Action),
	}
	m.BindKey(glfw.KeyW, ActionMoveForward)
	m.BindKey(glfw.KeyS, ActionMoveBackward)
	m.BindKey(glfw.KeyA, ActionMoveLeft)
	m.BindKey(glfw.KeyD, ActionMoveRight)
	m.BindKey(glfw.KeySpace, ActionMoveUp)
	m.BindKey(glfw.KeyLeftShift, ActionMoveDown)
	m.BindKey(glfw.KeyLeftControl, ActionFast)
	m.BindKey(glfw.KeyF, ActionToggleWireframe)
	m.BindKey(glfw.KeyV, ActionToggleStats)
	m.BindKey(glfw.KeyR, ActionReload)
	m.BindKey(glfw.KeyEscape, ActionQuit)
	m.BindButton(glfw.MouseButtonRight, ActionPlaceBlock)
	m.BindButton(glfw.MouseButtonLeft, ActionBreakBlock)
	return m
}

// BindKey maps key to action, replacing any previous binding of key.
func (m *Manager) BindKey(key glfw.Key, action Action) {
	if action < 0 || action >= ActionCount {
		return
	}
	m.mu.Lock()
	m.keys[key] = action
	m.mu.Unlock()
}

// BindButton maps a mouse button to action.
func (m *Manager) BindButton(button glfw.MouseButton, action Action) {
	if action < 0 || action >= ActionCount {
		return
	}
	m.mu.Lock()
	m.buttons[button] = action
	m.mu.Unlock()
}

// HandleKey records a key event.
func (m *Manager) HandleKey(key glfw.Key, action glfw.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if act, ok := m.keys[key]; ok {
		m.setLocked(act, action == glfw.Press || action == glfw.Repeat)
	}
}

// HandleButton records a mouse button event.
func (m *Manager) HandleButton(button glfw.MouseButton, action glfw.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if act, ok := m.buttons[button]; ok {
		m.setLocked(act, action == glfw.Press)
	}
}

func (m *Manager) setLocked(act Action, pressed bool) {
	if pressed && !m.current[act] {
		m.justPressed[act] = true
	}
	if !pressed && m.current[act] {
		m.justReleased[act] = true
	}
	m.current[act] = pressed
}

// Attach installs key and mouse button callbacks on window.
func (m *Manager) Attach(window *glfw.Window) {
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		m.HandleKey(key, action)
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		m.HandleButton(button, action)
	})
}

// PostUpdate clears the edge flags; call it once at the end of each frame.
func (m *Manager) PostUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.justPressed = [ActionCount]bool{}
	m.justReleased = [ActionCount]bool{}
}

// IsActive returns true while the action is held.
func (m *Manager) IsActive(action Action) bool {
	if action < 0 || action >= ActionCount {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current[action]
}

// JustPressed returns true only in the frame the action was pressed.
func (m *Manager) JustPressed(action Action) bool {
	if action < 0 || action >= ActionCount {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.justPressed[action]
}

// JustReleased returns true only in the frame the action was released.
func (m *Manager) JustReleased(action Action) bool {
	if action < 0 || action >= ActionCount {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.justReleased[action]
}
