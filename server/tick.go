package server

import (
	"context"
	"time"

	"netarena/logger"
)

// StartTicker 启动房间的 Tick 循环（单线程推进世界），重复调用无效
func (r *Room) StartTicker(ctx context.Context) {
	if !r.tickerStarted.CompareAndSwap(false, true) {
		return
	}
	go r.Run(ctx)
}

// Run 以固定频率执行 Tick，直到 ctx 结束
func (r *Room) Run(ctx context.Context) {
	interval := r.config().TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Log.Infof("room %s ticking every %s", r.ID, interval)
	for {
		select {
		case <-ctx.Done():
			r.transport.Close()
			logger.Log.Infof("room %s stopped after %d ticks", r.ID, r.TickSeq())
			return
		case now := <-ticker.C:
			r.Tick(now, interval)
		}
	}
}
