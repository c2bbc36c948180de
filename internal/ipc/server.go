package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("component", "ipc").Logger()

// CommandHandler handles one control line sent by a client, e.g. "offset 200".
// The returned text is written back to that client only.
type CommandHandler func(cmd string, args []string) (string, error)

// Server 通过 unix socket 向客户端广播当前歌词行，并接收控制命令
type Server struct {
	socketPath      string
	listener        net.Listener
	clientConns     map[net.Conn]struct{}
	clientConnsLock sync.Mutex
	current         string
	currentLock     sync.Mutex
	lockFile        *os.File
	lockFilePath    string
	handler         CommandHandler
	wg              sync.WaitGroup
}

func NewServer(socketPath string) *Server {
	return &Server{
		socketPath:   socketPath,
		clientConns:  make(map[net.Conn]struct{}),
		lockFilePath: socketPath + ".lock",
	}
}

// SetHandler 必须在 Start 之前调用
func (s *Server) SetHandler(h CommandHandler) {
	s.handler = h
}

func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) checkAndCleanOldLock() {
	if _, err := os.Stat(s.lockFilePath); os.IsNotExist(err) {
		return
	}

	content, err := os.ReadFile(s.lockFilePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		logger.Warn().Err(err).Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	// kill(pid, 0) 只检查进程是否存在
	if syscall.Kill(pid, 0) != nil {
		logger.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}

	logger.Info().Int("existing_pid", pid).Msg("Another process is still running")
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		file.Close()
		if err == syscall.EWOULDBLOCK {
			return fmt.Errorf("another lyricsync instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := file.Truncate(0); err == nil {
		_, err = file.WriteString(fmt.Sprintf("%d\n", os.Getpid()))
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	logger.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile != nil {
		syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
		s.lockFile.Close()
		os.Remove(s.lockFilePath)
		logger.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
		s.lockFile = nil
	}
}

func (s *Server) Start() error {
	// 首先尝试获取进程锁
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	logger.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	s.clientConnsLock.Lock()
	s.clientConns[conn] = struct{}{}
	s.clientConnsLock.Unlock()

	logger.Info().Msg("Client connected")

	s.currentLock.Lock()
	_, err := conn.Write([]byte(s.current + "\n"))
	s.currentLock.Unlock()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send initial line")
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		s.handleCommand(conn, scanner.Text())
	}

	s.clientConnsLock.Lock()
	delete(s.clientConns, conn)
	s.clientConnsLock.Unlock()
	conn.Close()
	logger.Info().Msg("Client disconnected")
}

func (s *Server) handleCommand(conn net.Conn, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	reply := "error: commands not supported"
	if s.handler != nil {
		out, err := s.handler(strings.ToLower(fields[0]), fields[1:])
		if err != nil {
			reply = "error: " + err.Error()
			logger.Warn().Err(err).Str("command", line).Msg("Command failed")
		} else {
			reply = "ok"
			if out != "" {
				reply += " " + out
			}
		}
	}

	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	if _, err := conn.Write([]byte(reply + "\n")); err != nil {
		logger.Error().Err(err).Msg("Failed to reply to client")
	}
}

// Broadcast sends one line to every connected client and remembers it for
// clients that connect later.
func (s *Server) Broadcast(line string) {
	line = strings.ReplaceAll(line, "\n", " ")

	s.currentLock.Lock()
	s.current = line
	s.currentLock.Unlock()

	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()

	data := []byte(line + "\n")
	for conn := range s.clientConns {
		_, err := conn.Write(data)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to write to client, removing")
			conn.Close()
			delete(s.clientConns, conn)
		}
	}
}

// Current 最近一次广播的内容
func (s *Server) Current() string {
	s.currentLock.Lock()
	defer s.currentLock.Unlock()
	return s.current
}

func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
		s.wg.Wait()
	}

	s.clientConnsLock.Lock()
	for conn := range s.clientConns {
		conn.Close()
		delete(s.clientConns, conn)
	}
	s.clientConnsLock.Unlock()

	os.Remove(s.socketPath)
	s.releaseLock()
}
