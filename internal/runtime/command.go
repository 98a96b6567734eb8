package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/webitel/actor-runtime/internal/domain/registry"
)

// ErrNumericGlobalName is returned by the REG command when asked to
// publish a purely numeric name globally — skynet_harbor.c asserts on
// this case (a numeric name would be indistinguishable from a raw
// handle in :hex form); this runtime returns it as an ordinary error
// instead of aborting the process (SPEC_FULL.md Open Question #2).
var ErrNumericGlobalName = fmt.Errorf("runtime: a numeric name cannot be registered globally")

// Command implements the single-entry-point text command surface
// (spec.md §4.5): TIMEOUT, REG, QUERY, NAME, NOW, STARTTIME, EXIT,
// KILL, LAUNCH, GETENV, SETENV, LOCK, UNLOCK, ENDLESS, ABORT, MONITOR,
// MQLEN. cmd is dispatched case-sensitively on the exact keyword the
// C original uses; param is the remainder of the line, already
// trimmed.
func (n *Node) Command(self *registry.Context, cmd, param string) (string, error) {
	switch cmd {
	case "TIMEOUT":
		return n.cmdTimeout(self, param)
	case "REG":
		return n.cmdReg(self, param)
	case "QUERY":
		return n.cmdQuery(param)
	case "NAME":
		return n.cmdName(param)
	case "NOW":
		return strconv.FormatUint(uint64(n.Wheel.Now()), 10), nil
	case "STARTTIME":
		return strconv.FormatUint(uint64(n.Wheel.StartTime()), 10), nil
	case "EXIT":
		n.HandleExit(self.Handle())
		return "", nil
	case "KILL":
		return n.cmdKill(param)
	case "LAUNCH":
		return n.cmdLaunch(param)
	case "GETENV":
		return n.cmdGetenv(param)
	case "SETENV":
		return n.cmdSetenv(param)
	case "LOCK":
		self.Mailbox.Lock(self.PeekNextSession())
		return "", nil
	case "UNLOCK":
		self.Mailbox.Unlock()
		return "", nil
	case "ENDLESS":
		if self.ConsumeEndless() {
			return "1", nil
		}
		return "0", nil
	case "ABORT":
		n.Registry.RetireAll()
		return "", nil
	case "MONITOR":
		return n.cmdMonitor(param)
	case "MQLEN":
		return strconv.Itoa(self.Mailbox.Length()), nil
	default:
		return "", fmt.Errorf("runtime: unrecognized command %q", cmd)
	}
}

func (n *Node) cmdTimeout(self *registry.Context, param string) (string, error) {
	t, err := strconv.ParseUint(strings.TrimSpace(param), 10, 32)
	if err != nil {
		return "", fmt.Errorf("runtime: TIMEOUT: %w", err)
	}
	session := self.NewSession()
	if t == 0 {
		// skynet_timer.c's skynet_timeout: time == 0 pushes the response
		// immediately instead of going through the wheel, so it lands in
		// the same dispatch iteration (spec.md §8 S2).
		n.Deliver(uint32(self.Handle()), session)
		return strconv.FormatInt(int64(session), 10), nil
	}
	n.Wheel.Add(uint32(self.Handle()), session, uint32(t))
	return strconv.FormatInt(int64(session), 10), nil
}

func (n *Node) cmdReg(self *registry.Context, param string) (string, error) {
	name := strings.TrimSpace(param)
	if name == "" {
		return ":" + strconv.FormatUint(uint64(self.Handle()), 16), nil
	}
	if isNumeric(name) {
		return "", ErrNumericGlobalName
	}
	if strings.HasPrefix(name, ".") {
		bound, err := n.Registry.NameHandle(self.Handle(), name)
		if err != nil {
			return "", fmt.Errorf("runtime: REG %s: %w", name, err)
		}
		return bound, nil
	}
	if n.Harbor == nil {
		return "", fmt.Errorf("runtime: REG %s: no harbor transport configured for global names", name)
	}
	if err := n.Harbor.RegisterGlobal(name, uint32(self.Handle())); err != nil {
		return "", fmt.Errorf("runtime: REG %s: %w", name, err)
	}
	return name, nil
}

func (n *Node) cmdQuery(param string) (string, error) {
	name := strings.TrimSpace(param)
	name = strings.TrimPrefix(name, ".")
	h := n.Registry.FindName("." + name)
	if h == 0 {
		return "", fmt.Errorf("runtime: QUERY .%s: not found", name)
	}
	return ":" + strconv.FormatUint(uint64(h), 16), nil
}

func (n *Node) cmdName(param string) (string, error) {
	fields := strings.Fields(param)
	if len(fields) != 2 {
		return "", fmt.Errorf("runtime: NAME requires a name and a handle")
	}
	h, err := parseHandleArg(n.Registry, fields[1])
	if err != nil {
		return "", fmt.Errorf("runtime: NAME %s: %w", param, err)
	}
	bound, err := n.Registry.NameHandle(h, fields[0])
	if err != nil {
		return "", fmt.Errorf("runtime: NAME %s: %w", param, err)
	}
	return bound, nil
}

func (n *Node) cmdKill(param string) (string, error) {
	h, err := parseHandleArg(n.Registry, strings.TrimSpace(param))
	if err != nil {
		return "", fmt.Errorf("runtime: KILL %s: %w", param, err)
	}
	n.HandleExit(h)
	return "", nil
}

func (n *Node) cmdLaunch(param string) (string, error) {
	fields := strings.SplitN(strings.TrimSpace(param), " ", 2)
	if len(fields) == 0 || fields[0] == "" {
		return "", fmt.Errorf("runtime: LAUNCH requires a module name")
	}
	var args string
	if len(fields) == 2 {
		args = fields[1]
	}
	child, err := n.ContextNew(fields[0], args)
	if err != nil {
		return "", err
	}
	return ":" + strconv.FormatUint(uint64(child.Handle()), 16), nil
}

func (n *Node) cmdGetenv(param string) (string, error) {
	key := strings.TrimSpace(param)
	v, ok := n.Env.Get(key)
	if !ok {
		return "", fmt.Errorf("runtime: GETENV %s: not set", key)
	}
	return v, nil
}

func (n *Node) cmdSetenv(param string) (string, error) {
	fields := strings.SplitN(strings.TrimSpace(param), " ", 2)
	if len(fields) != 2 {
		return "", fmt.Errorf("runtime: SETENV requires a key and a value")
	}
	n.Env.Set(fields[0], fields[1])
	return "", nil
}

func (n *Node) cmdMonitor(param string) (string, error) {
	param = strings.TrimSpace(param)
	if param == "" {
		return strconv.FormatUint(uint64(n.monitorExit.Load()), 16), nil
	}
	h, err := parseHandleArg(n.Registry, param)
	if err != nil {
		return "", fmt.Errorf("runtime: MONITOR %s: %w", param, err)
	}
	n.monitorExit.Store(uint32(h))
	return "", nil
}

// parseHandleArg resolves a command argument as either ":hex" (a raw
// handle) or ".name" (a local directory lookup) — spec.md §4.5's
// "Handle lookup in arguments accepts :hex ... and .name".
func parseHandleArg(reg interface {
	FindName(string) registry.Handle
}, arg string) (registry.Handle, error) {
	switch {
	case strings.HasPrefix(arg, ":"):
		v, err := strconv.ParseUint(arg[1:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid handle %q: %w", arg, err)
		}
		return registry.Handle(v), nil
	case strings.HasPrefix(arg, "."):
		h := reg.FindName(arg)
		if h == 0 {
			return 0, fmt.Errorf("name %q not found", arg)
		}
		return h, nil
	default:
		return 0, fmt.Errorf("handle argument %q must start with ':' or '.'", arg)
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
