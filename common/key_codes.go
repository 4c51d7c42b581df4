package common

// Key is a keyboard key. The values match GLFW key codes, which use ASCII for
// printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
type Key int

const (
	KeyUnknown Key = -1

	KeySpace Key = 32 // Spacebar (ASCII)
	Key0     Key = 48 // 0 key (ASCII)
	Key1     Key = 49
	Key2     Key = 50
	Key3     Key = 51
	Key4     Key = 52
	KeyA     Key = 65 // A key (ASCII)
	KeyC     Key = 67
	KeyD     Key = 68
	KeyF     Key = 70
	KeyL     Key = 76
	KeyN     Key = 78
	KeyP     Key = 80
	KeyR     Key = 82
	KeyS     Key = 83
	KeyW     Key = 87

	KeyEsc   Key = 256 // Escape key (GLFW)
	KeyEnter Key = 257
	KeyRight Key = 262
	KeyLeft  Key = 263
	KeyDown  Key = 264
	KeyUp    Key = 265

	KeyLeftShift  Key = 340 // Left Shift (GLFW)
	KeyRightShift Key = 344 // Right Shift (GLFW)
)

// MouseButton is a mouse button, numbered like GLFW's.
type MouseButton int

const (
	MouseLeft   MouseButton = 0
	MouseRight  MouseButton = 1
	MouseMiddle MouseButton = 2
)
