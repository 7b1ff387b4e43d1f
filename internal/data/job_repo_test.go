package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rabbitpom/rapidl-backend/internal/constants"
)

func TestTerminalStatusColumns(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	success := successColumns(now)
	assert.Equal(t, constants.JobStatusSuccess, success["status"])
	assert.Equal(t, now, success["finished_on"])

	// finished_on 只属于 Success：Failed 的行不写完成时间，
	// 内容读取端靠 "Success 必有完成时间" 识别脏数据
	failed := failedColumns()
	assert.Equal(t, constants.JobStatusFailed, failed["status"])
	assert.NotContains(t, failed, "finished_on")
}
