package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netarena/client"
	"netarena/logger"
	"netarena/server"
	"netarena/transport"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	logFile  string
	logLevel string

	serverAddr   string
	tickRate     int
	speed        float32
	maxClients   int
	dropProb     float64
	defaultRooms []string

	serverURL  string
	frameRate  int
	duration   time.Duration
	strategy   string
	interpRate float64

	rootCmd = &cobra.Command{
		Use:   "netarena",
		Short: "Server-authoritative multiplayer arena with snapshot replication.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return errors.Wrap(logger.Init(logFile, logLevel), "init logger failed")
		},
		SilenceUsage: true,
	}

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Starts the authoritative arena server.",
		RunE:  runServer,
	}

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "Starts a headless client that wanders around the arena.",
		RunE:  runClient,
	}
)

// runServer 启动 HTTP + WebSocket 服务，并初始化房间管理器
func runServer(cmd *cobra.Command, _ []string) error {
	defer logger.Sync()

	cfg := server.DefaultConfig()
	cfg.TickRate = tickRate
	cfg.Speed = speed
	cfg.MaxClients = maxClients
	cfg.SimulateDropProb = dropProb
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid server flags")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rm := server.NewRoomManager(ctx, cfg, transport.DefaultConnectionConfig())
	// 预创建房间，便于快速试跑
	for _, id := range defaultRooms {
		if _, err := rm.GetOrCreateRoom(id); err != nil {
			return errors.Wrapf(err, "create room %s failed", id)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rm.HandleWS)
	// 管理与监控接口
	mux.HandleFunc("/admin/config", rm.HandleAdminConfig)
	mux.HandleFunc("/admin/schema", rm.HandleAdminSchema)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	// 先绑定端口：绑定失败直接退出
	ln, err := net.Listen("tcp", serverAddr)
	if err != nil {
		logger.Log.Fatalf("listen on %s: %v", serverAddr, err)
	}
	srv := &http.Server{Handler: mux}
	go func() {
		logger.Log.Infof("netarena listening on %s (%d TPS)", ln.Addr(), cfg.TickRate)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Log.Errorf("serve: %v", err)
			stop()
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	logger.Log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown http server failed")
}

// runClient 无头客户端：连接服务端，随机游走并定期输出本地视图
func runClient(cmd *cobra.Command, _ []string) error {
	defer logger.Sync()

	st, err := client.ParseStrategy(strategy)
	if err != nil {
		return err
	}
	cfg := client.DefaultConfig()
	cfg.Strategy = st
	cfg.FrameRate = frameRate
	cfg.InterpolationRate = interpRate

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	conn, err := transport.DialWS(ctx, serverURL, transport.DefaultConnectionConfig())
	if err != nil {
		return errors.Wrap(err, "connect to server failed")
	}
	defer conn.Close()

	c, err := client.New(cfg, conn, client.NewWanderInput(time.Now().UnixNano(), time.Second))
	if err != nil {
		return errors.Wrap(err, "create client failed")
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	status := time.NewTicker(2 * time.Second)
	defer status.Stop()
	for {
		select {
		case err := <-done:
			logger.Log.Infof("client stopped: %v", c.Metrics().Snapshot())
			return err
		case <-status.C:
			// 只读原子指标，帧循环内的状态不跨 goroutine 访问
			logger.Log.Infof("client status: %v", c.Metrics().Snapshot())
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (stdout when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug / info / warn / error")

	def := server.DefaultConfig()
	serverCmd.Flags().StringVar(&serverAddr, "addr", ":20987", "listen address")
	serverCmd.Flags().IntVar(&tickRate, "tick-rate", def.TickRate, "simulation ticks per second")
	serverCmd.Flags().Float32Var(&speed, "speed", def.Speed, "player speed in units per second")
	serverCmd.Flags().IntVar(&maxClients, "max-clients", def.MaxClients, "max clients per room")
	serverCmd.Flags().Float64Var(&dropProb, "drop-prob", 0, "simulated outbound packet loss in [0,1]")
	serverCmd.Flags().StringSliceVar(&defaultRooms, "rooms", []string{server.DefaultRoom}, "rooms created at startup")

	cdef := client.DefaultConfig()
	clientCmd.Flags().StringVar(&serverURL, "server", "ws://127.0.0.1:20987/ws?room="+server.DefaultRoom, "server websocket url")
	clientCmd.Flags().IntVar(&frameRate, "fps", cdef.FrameRate, "client frames per second")
	clientCmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	clientCmd.Flags().StringVar(&strategy, "strategy", cdef.Strategy.String(), "despawn strategy: absence / event")
	clientCmd.Flags().Float64Var(&interpRate, "interp-rate", cdef.InterpolationRate, "renderer interpolation rate (1/s)")

	rootCmd.AddCommand(serverCmd, clientCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Log.Errorf("%v", err)
		os.Exit(1)
	}
}
