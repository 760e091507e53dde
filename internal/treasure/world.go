package treasure

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"city.newnan/mc-toolbox/internal/mcparse"
)

// 宝箱位置的范围
const (
	MaxDistance = 5000 // x、z 距离原点的最大值
	DeadZone    = 1000 // 原点附近不放置宝箱的范围
	MaxHeight   = 70
	MinHeight   = -50
	WaterLevel  = 62
)

var (
	// ErrNoSpot 这次随机到的位置不可用
	ErrNoSpot = errors.New("没有找到合适的宝箱位置")
	// ErrPositionNotLoaded 目标位置所在区块没有加载
	ErrPositionNotLoaded = mcparse.ErrPositionNotLoaded
)

// Commander 执行一条服务器命令
type Commander interface {
	ExecuteCommand(cmd string) (string, error)
}

// Position 方块坐标
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d, %d, %d", p.X, p.Y, p.Z)
}

// World 通过服务器命令查询和修改世界
type World struct {
	cmd     Commander
	limiter *rate.Limiter
	rng     *rand.Rand
	logger  *zap.Logger
}

// WorldOption World的配置项
type WorldOption func(*World)

// WithProbeInterval 设置群系探测命令之间的最小间隔，<=0 表示不限制
func WithProbeInterval(d time.Duration) WorldOption {
	return func(w *World) {
		if d <= 0 {
			w.limiter = rate.NewLimiter(rate.Inf, 1)
		} else {
			w.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithRand 使用指定的随机数源
func WithRand(rng *rand.Rand) WorldOption {
	return func(w *World) { w.rng = rng }
}

// WithLogger 设置日志记录器
func WithLogger(l *zap.Logger) WorldOption {
	return func(w *World) { w.logger = l }
}

// NewWorld 创建World，群系探测默认每秒一次，避免占满服务器主线程
func NewWorld(cmd Commander, opts ...WorldOption) *World {
	w := &World{
		cmd:     cmd,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// TestForBlock 判断指定位置是否为某种方块
func (w *World) TestForBlock(pos Position, block string) (bool, error) {
	output, err := w.cmd.ExecuteCommand(fmt.Sprintf("execute if block %d %d %d %s", pos.X, pos.Y, pos.Z, block))
	if err != nil {
		return false, err
	}
	return mcparse.ParseBlockTest(output)
}

// DetectBiome 依次定位每个群系，距离为0的就是所在群系
// 无法解析的响应会被跳过，都不匹配时返回空字符串
func (w *World) DetectBiome(ctx context.Context, pos Position) (string, error) {
	for _, biome := range Biomes {
		if err := w.limiter.Wait(ctx); err != nil {
			return "", err
		}
		output, err := w.cmd.ExecuteCommand(fmt.Sprintf(
			"execute positioned %d %d %d run locate biome minecraft:%s", pos.X, pos.Y, pos.Z, biome))
		if err != nil {
			return "", err
		}

		distance, err := mcparse.ParseLocateDistance(output)
		if err != nil {
			w.logger.Warn("无法解析群系定位结果", zap.String("biome", biome), zap.String("output", output))
			continue
		}
		if distance == 0 {
			return biome, nil
		}
	}
	return "", nil
}

// randomAxis 返回 [-MaxDistance, -DeadZone] ∪ [DeadZone+1, MaxDistance] 内的坐标
func (w *World) randomAxis() int {
	span := MaxDistance - DeadZone
	v := w.rng.Intn(2*span+1) - span
	if v > 0 {
		return v + DeadZone
	}
	return v - DeadZone
}

// RandomPosition 随机选择一个候选位置
func (w *World) RandomPosition() Position {
	x := w.randomAxis()
	y := MinHeight + w.rng.Intn(MaxHeight-MinHeight+1)
	z := w.randomAxis()
	return Position{X: x, Y: y, Z: z}
}

// FindSpot 随机选一个位置，再沿y轴移动到地面上方的第一个空气方块
// 越过高度范围或者区块未加载时返回 ErrNoSpot
func (w *World) FindSpot() (Position, error) {
	pos, err := w.settle(w.RandomPosition())
	if errors.Is(err, ErrPositionNotLoaded) {
		return Position{}, ErrNoSpot
	}
	return pos, err
}

func (w *World) settle(pos Position) (Position, error) {
	air, err := w.TestForBlock(pos, "minecraft:air")
	if err != nil {
		return Position{}, err
	}

	if air {
		// 向下找到第一个非空气方块
		for air {
			pos.Y--
			if pos.Y < MinHeight {
				return Position{}, ErrNoSpot
			}
			if air, err = w.TestForBlock(pos, "minecraft:air"); err != nil {
				return Position{}, err
			}
		}
		pos.Y++
		return pos, nil
	}

	// 向上找到第一个空气方块
	for !air {
		pos.Y++
		if pos.Y > MaxHeight {
			return Position{}, ErrNoSpot
		}
		if air, err = w.TestForBlock(pos, "minecraft:air"); err != nil {
			return Position{}, err
		}
	}
	return pos, nil
}

// PlaceTreasure 放置装有一个物品的宝箱
func (w *World) PlaceTreasure(pos Position, item string) error {
	_, err := w.cmd.ExecuteCommand(fmt.Sprintf(
		"setblock %d %d %d minecraft:chest{Items:[{id:'minecraft:%s',Count:1b}]}", pos.X, pos.Y, pos.Z, item))
	return err
}

// HasChest 指定位置是否还有宝箱
func (w *World) HasChest(pos Position) (bool, error) {
	return w.TestForBlock(pos, "minecraft:chest")
}

// TreasureGone 宝箱已被清空或者已经不存在
func (w *World) TreasureGone(pos Position) (bool, error) {
	empty, err := w.TestForBlock(pos, "minecraft:chest{Items:[]}")
	if err != nil || empty {
		return empty, err
	}
	chest, err := w.HasChest(pos)
	if err != nil {
		return false, err
	}
	return !chest, nil
}

// RemoveChest 把宝箱替换为空气
func (w *World) RemoveChest(pos Position) error {
	_, err := w.cmd.ExecuteCommand(fmt.Sprintf("setblock %d %d %d minecraft:air", pos.X, pos.Y, pos.Z))
	return err
}
