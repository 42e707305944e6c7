package display

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	_ "modernc.org/sqlite"
)

// Recorder 将每步状态记录到SQLite
// 功能：每次运行生成一个run_id，状态按步写入steps表
// 说明：写入失败只记录日志，不影响控制循环
type Recorder struct {
	db    *sql.DB
	runID string
	stmt  *sql.Stmt
}

// NewRecorder 打开（或创建）记录文件并登记本次运行
func NewRecorder(path, leader, follower string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			leader TEXT,
			follower TEXT,
			started_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT,
			step INTEGER,
			t DOUBLE,
			requested_speed DOUBLE,
			actuated_speed DOUBLE,
			acceleration DOUBLE,
			jerk DOUBLE,
			follower_speed DOUBLE,
			status TEXT,
			follower_status TEXT,
			PRIMARY KEY (run_id, step),
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	r := &Recorder{db: db, runID: uuid.NewString()}
	if _, err := db.Exec("INSERT INTO runs (run_id, leader, follower, started_at) VALUES (?, ?, ?, ?)",
		r.runID, leader, follower, time.Now().UTC()); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}
	r.stmt, err = db.Prepare(`INSERT OR REPLACE INTO steps
		(run_id, step, t, requested_speed, actuated_speed, acceleration, jerk, follower_speed, status, follower_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare: %w", err)
	}
	log.Infof("recording run %s to %s", r.runID, path)
	return r, nil
}

// RunID 本次运行的ID
func (r *Recorder) RunID() string {
	return r.runID
}

// DB 底层数据库连接
func (r *Recorder) DB() *sql.DB {
	return r.db
}

func (r *Recorder) Show(s entity.Status) {
	if _, err := r.stmt.Exec(r.runID, s.Step, s.T, s.RequestedSpeed, s.ActuatedSpeed, s.Acceleration, s.Jerk, s.FollowerSpeed, s.Text, s.FollowerText); err != nil {
		log.Errorf("record step %d: %v", s.Step, err)
	}
}

// Close 关闭数据库
func (r *Recorder) Close() error {
	r.stmt.Close()
	return r.db.Close()
}
