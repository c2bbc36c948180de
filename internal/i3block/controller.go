package i3block

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// sigRTMin 是 Linux 上的 SIGRTMIN，i3blocks 的 signal=N 对应 SIGRTMIN+N
const sigRTMin = 34

var logger = log.With().Str("component", "i3block").Logger()

// PIDFinder 返回 i3blocks 进程的 PID
type PIDFinder func() (int, error)

// Controller tracks the i3blocks PID and asks it to refresh the lyrics block.
type Controller struct {
	signal   syscall.Signal
	find     PIDFinder
	kill     func(pid int, sig syscall.Signal) error
	interval time.Duration

	pid      int
	pidMutex sync.RWMutex

	stopChan  chan struct{}
	isRunning bool
	runMutex  sync.Mutex
}

// NewController blockSignal 与 i3blocks 配置里的 signal 值一致
func NewController(blockSignal int) *Controller {
	return &Controller{
		signal:   syscall.Signal(sigRTMin + blockSignal),
		find:     findPID,
		kill:     sendSignal,
		interval: 10 * time.Second,
		pid:      -1,
	}
}

// Start refreshes the PID immediately and then every interval.
func (c *Controller) Start() error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if c.isRunning {
		return fmt.Errorf("controller is already running")
	}

	if err := c.refreshPID(); err != nil {
		logger.Warn().Err(err).Msg("i3blocks not found yet")
	}

	c.stopChan = make(chan struct{})
	c.isRunning = true
	go c.monitorLoop(c.stopChan)

	logger.Info().Int("signal", int(c.signal)).Msg("i3block controller started")
	return nil
}

func (c *Controller) Stop() {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if !c.isRunning {
		return
	}

	close(c.stopChan)
	c.isRunning = false

	logger.Info().Msg("i3block controller stopped")
}

func (c *Controller) monitorLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.refreshPID(); err != nil {
				logger.Debug().Err(err).Msg("Failed to refresh i3blocks PID")
			}
		case <-stop:
			return
		}
	}
}

func (c *Controller) refreshPID() error {
	pid, err := c.find()
	if err != nil {
		c.setPID(-1)
		return err
	}

	if old := c.setPID(pid); old != pid {
		logger.Info().Int("old_pid", old).Int("pid", pid).Msg("i3blocks PID updated")
	}
	return nil
}

func (c *Controller) setPID(pid int) int {
	c.pidMutex.Lock()
	defer c.pidMutex.Unlock()
	old := c.pid
	c.pid = pid
	return old
}

func (c *Controller) GetPID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

// Refresh signals i3blocks to re-run the lyrics block. A failed signal
// triggers one PID lookup and a retry, since i3blocks may have restarted.
func (c *Controller) Refresh() error {
	pid := c.GetPID()
	if pid > 0 {
		if err := c.kill(pid, c.signal); err == nil {
			return nil
		}
	}

	if err := c.refreshPID(); err != nil {
		return err
	}
	pid = c.GetPID()
	if err := c.kill(pid, c.signal); err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", c.signal, pid, err)
	}
	return nil
}

func sendSignal(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(sig)
}

func findPID() (int, error) {
	output, err := exec.Command("pgrep", "-x", "i3blocks").Output()
	if err != nil {
		return findPIDAlternative()
	}
	return parseFirstPID(string(output))
}

// findPIDAlternative 没有 pgrep 时扫描 ps 输出
func findPIDAlternative() (int, error) {
	output, err := exec.Command("ps", "-eo", "pid,comm").Output()
	if err != nil {
		return -1, fmt.Errorf("failed to run ps command: %w", err)
	}

	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "i3blocks" {
			if pid, err := strconv.Atoi(fields[0]); err == nil {
				return pid, nil
			}
		}
	}
	return -1, fmt.Errorf("i3blocks process not found")
}

func parseFirstPID(output string) (int, error) {
	first, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	if first == "" {
		return -1, fmt.Errorf("i3blocks process not found")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return -1, fmt.Errorf("failed to parse PID: %w", err)
	}
	return pid, nil
}
