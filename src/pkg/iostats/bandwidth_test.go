package iostats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/diskpulse/diskpulse/src/pkg/proctable"
)

func sample(pid int32, name string, read, write uint64) proctable.Sample {
	return proctable.Sample{PID: pid, Name: name, ReadBytes: read, WriteBytes: write}
}

func TestBandwidthCollector_Collect(t *testing.T) {
	ctx := context.Background()

	t.Run("读字节 1000 到 1500，间隔 2 秒，速率 250", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		table := NewMockProcessTable(ctrl)
		gomock.InOrder(
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(10, "dd", 1000, 0)}, nil),
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(10, "dd", 1500, 0)}, nil),
		)
		c := NewBandwidthCollector(table)

		require.NoError(t, c.Prime(ctx))
		stats, err := c.Collect(ctx, 2*time.Second)
		require.NoError(t, err)

		require.Len(t, stats, 1)
		assert.Equal(t, int32(10), stats[0].PID)
		assert.Equal(t, "dd", stats[0].Name)
		assert.Equal(t, BytesPerSecond(250), stats[0].ReadBytes)
		assert.Equal(t, BytesPerSecond(0), stats[0].WriteBytes)
		assert.Nil(t, stats[0].ReadOps)
		assert.Nil(t, stats[0].WriteOps)
	})

	t.Run("第一次见到的进程差值为 0", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		table := NewMockProcessTable(ctrl)
		table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(1, "launchd", 1<<30, 1<<30)}, nil)
		c := NewBandwidthCollector(table)

		stats, err := c.Collect(ctx, time.Second)
		require.NoError(t, err)
		assert.Empty(t, stats)
	})

	t.Run("Prime 之后立即 Collect 不会报告生命周期总量", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		table := NewMockProcessTable(ctrl)
		samples := []proctable.Sample{sample(1, "a", 5000, 7000), sample(2, "b", 100, 0)}
		table.EXPECT().Refresh(gomock.Any()).Return(samples, nil).Times(2)
		c := NewBandwidthCollector(table)

		require.NoError(t, c.Prime(ctx))
		stats, err := c.Collect(ctx, time.Second)
		require.NoError(t, err)
		assert.Empty(t, stats)
	})

	t.Run("累计值变小（进程号复用）时差值为 0", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		table := NewMockProcessTable(ctrl)
		gomock.InOrder(
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(7, "old", 9000, 9000)}, nil),
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(7, "new", 100, 9500)}, nil),
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(7, "new", 300, 9500)}, nil),
		)
		c := NewBandwidthCollector(table)
		require.NoError(t, c.Prime(ctx))

		stats, err := c.Collect(ctx, time.Second)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, BytesPerSecond(0), stats[0].ReadBytes)
		assert.Equal(t, BytesPerSecond(500), stats[0].WriteBytes)

		// 下一个周期以新进程的值为基线，自动恢复
		stats, err = c.Collect(ctx, time.Second)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, BytesPerSecond(200), stats[0].ReadBytes)
		assert.Equal(t, BytesPerSecond(0), stats[0].WriteBytes)
	})

	t.Run("已退出的进程被清理", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		table := NewMockProcessTable(ctrl)
		gomock.InOrder(
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(1, "a", 10, 10), sample(2, "b", 10, 10)}, nil),
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(1, "a", 10, 10)}, nil),
			// pid 2 重新出现，应重新以当前值为基线
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(1, "a", 10, 10), sample(2, "b2", 50000, 0)}, nil),
		)
		c := NewBandwidthCollector(table)
		require.NoError(t, c.Prime(ctx))

		_, err := c.Collect(ctx, time.Second)
		require.NoError(t, err)
		assert.NotContains(t, c.previous, int32(2))

		stats, err := c.Collect(ctx, time.Second)
		require.NoError(t, err)
		assert.Empty(t, stats)
		assert.Contains(t, c.previous, int32(2))
	})

	t.Run("按总带宽降序", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		table := NewMockProcessTable(ctrl)
		gomock.InOrder(
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{
				sample(1, "a", 0, 0), sample(2, "b", 0, 0), sample(3, "c", 0, 0),
			}, nil),
			table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{
				sample(1, "a", 100, 0), sample(2, "b", 300, 300), sample(3, "c", 0, 200),
			}, nil),
		)
		c := NewBandwidthCollector(table)
		require.NoError(t, c.Prime(ctx))

		stats, err := c.Collect(ctx, time.Second)
		require.NoError(t, err)
		require.Len(t, stats, 3)
		assert.Equal(t, []int32{2, 3, 1}, []int32{stats[0].PID, stats[1].PID, stats[2].PID})
	})

	t.Run("刷新失败", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		table := NewMockProcessTable(ctrl)
		table.EXPECT().Refresh(gomock.Any()).Return(nil, errors.New("sysctl failed"))
		c := NewBandwidthCollector(table)

		_, err := c.Collect(ctx, time.Second)
		assert.ErrorContains(t, err, "sysctl failed")
	})
}

func TestBandwidthCollector_NeverExceedsTrueIncrease(t *testing.T) {
	ctx := context.Background()
	readings := []uint64{0, 10, 10, 5, 40, 40, 1000, 3}

	ctrl := gomock.NewController(t)
	table := NewMockProcessTable(ctrl)
	var calls []any
	for _, r := range readings {
		calls = append(calls, table.EXPECT().Refresh(gomock.Any()).Return([]proctable.Sample{sample(9, "x", r, 0)}, nil))
	}
	gomock.InOrder(calls...)

	c := NewBandwidthCollector(table)
	require.NoError(t, c.Prime(ctx))
	for i := 1; i < len(readings); i++ {
		stats, err := c.Collect(ctx, time.Second)
		require.NoError(t, err)

		var want uint64
		if readings[i] > readings[i-1] {
			want = readings[i] - readings[i-1]
		}
		var got BytesPerSecond
		if len(stats) > 0 {
			got = stats[0].ReadBytes
		}
		assert.Equal(t, BytesPerSecond(want), got, "第 %d 次采集", i)
	}
}

func TestBandwidthCollector_LookupProcessName(t *testing.T) {
	ctrl := gomock.NewController(t)
	table := NewMockProcessTable(ctrl)
	table.EXPECT().Name(int32(1)).Return("launchd", true)
	table.EXPECT().Name(int32(99999)).Return("", false)
	c := NewBandwidthCollector(table)

	assert.Equal(t, "launchd", c.LookupProcessName(1))
	assert.Equal(t, ExitedProcessName, c.LookupProcessName(99999))
}
