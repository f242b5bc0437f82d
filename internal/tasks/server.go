package tasks

import (
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func RedisOpt(addr, username, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	}
}

func NewServer(opt asynq.RedisClientOpt, log *zap.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"default": 1,
		},
		Logger: zapAdapter{log.Sugar()},
	})
}

func NewServeMux(r Releaser, log *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSlotRelease, HandleSlotRelease(r, log))
	return mux
}

// zapAdapter satisfies asynq.Logger.
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (a zapAdapter) Debug(args ...interface{}) { a.s.Debug(args...) }
func (a zapAdapter) Info(args ...interface{})  { a.s.Info(args...) }
func (a zapAdapter) Warn(args ...interface{})  { a.s.Warn(args...) }
func (a zapAdapter) Error(args ...interface{}) { a.s.Error(args...) }
func (a zapAdapter) Fatal(args ...interface{}) { a.s.Fatal(args...) }
