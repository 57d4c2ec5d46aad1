package window

// SnapshotProvider answers point-in-time questions about windows.
// Queries on a destroyed window return zero values, never errors.
type SnapshotProvider interface {
	// EnumerateTopLevelWindows lists the current top-level windows
	EnumerateTopLevelWindows() ([]Handle, error)

	// OwningProcessID returns the process that created the window
	OwningProcessID(h Handle) PID

	// WindowText returns the title, or "" if unavailable
	WindowText(h Handle) string

	// ClassName returns the window class, or "" if unavailable
	ClassName(h Handle) string

	// TopLevelAncestor returns the top-level window containing h
	TopLevelAncestor(h Handle) Handle

	// OwnerProperty returns the owner/transient-for window, 0 if none
	OwnerProperty(h Handle) Handle

	// IsVisible reports whether the window is currently shown
	IsVisible(h Handle) bool

	// ShellRootWindow returns the desktop background window
	ShellRootWindow() Handle

	// ShellTrayWindow returns the taskbar/panel window, 0 if none
	ShellTrayWindow() Handle
}

// NotificationSource delivers raw window notifications on a single
// goroutine, in arrival order.
type NotificationSource interface {
	// Subscribe starts delivery to fn. A failed Subscribe leaves no
	// partial registration behind.
	Subscribe(fn func(Notification)) error

	// Unsubscribe stops delivery; fn is not called after it returns.
	// Safe to call without a prior successful Subscribe.
	Unsubscribe()
}

// Controller performs pass-through operations on live windows
type Controller interface {
	IsAlive(h Handle) bool
	IsActive(h Handle) bool
	HasFocus(h Handle) bool
	IsEnabled(h Handle) bool

	Rect(h Handle) (Rect, error)
	SetPosition(h Handle, p Point) error
	SetSize(h Handle, s Size) error
	SetOpacity(h Handle, opacity float64) error

	Show(h Handle, opts ShowOptions) error
	Hide(h Handle) error
	Restore(h Handle, defaultPlacement bool) error
	Minimize(h Handle, activate, force bool) error
	Maximize(h Handle) error
	Flash(h Handle, opts FlashOptions) error

	SendKeys(h Handle, text string) error
	EnableInput(h Handle, enable bool) error
	BringToTop(h Handle) error
	Focus(h Handle) error
	Parent(h Handle) (Handle, error)

	CloseWindow(h Handle) error
	DestroyWindow(h Handle) error
	SendMessage(h Handle, msg Message) error
	PostMessage(h Handle, msg Message) error
}

// Backend is a display-server binding providing all three contracts
type Backend interface {
	SnapshotProvider
	NotificationSource
	Controller

	// Name returns the backend name (e.g., "x11")
	Name() string

	// Close releases the display connection
	Close() error
}
