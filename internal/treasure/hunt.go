package treasure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/mcparse"
)

// Outcome 一次寻宝活动的结果
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"    // 按概率跳过
	OutcomeNoPlayers Outcome = "no_players" // 没有在线玩家
	OutcomeNoSpot    Outcome = "no_spot"    // 没有找到合适的位置
	OutcomeEmptied   Outcome = "emptied"    // 宝箱在时限内被取走
	OutcomeExpired   Outcome = "expired"    // 时间到，宝箱消失
	OutcomeCancelled Outcome = "cancelled"  // 活动被中途取消
)

// 活动流程中的阶段，同时作为事件的 Stage
const (
	StageStarted   = "started"
	StageSpot      = "spot"
	StagePlaced    = "placed"
	StageWarning   = "warning"
	StageCountdown = "countdown"
	StageEmptied   = "emptied"
	StageRemoved   = "removed"
	StageFinished  = "finished"
)

const (
	DefaultSkipOdds = 48
	DefaultAttempts = 1000
	roundTo         = 16
)

// countdownTape 每分钟检查一次，非0的项表示剩余分钟数的提醒
var countdownTape = []int{0, 0, 0, 0, 0, 5, 0, 3, 2, 1}

// Event 活动进度事件
type Event struct {
	RunID    string    `json:"run_id"`
	Stage    string    `json:"stage"`
	Message  string    `json:"message"`
	Position *Position `json:"position,omitempty"`
	Time     time.Time `json:"time"`
}

// EventSink 接收活动进度事件
type EventSink interface {
	Publish(event Event)
}

// EventSinkFunc 函数形式的 EventSink
type EventSinkFunc func(Event)

// Publish 实现 EventSink
func (f EventSinkFunc) Publish(e Event) { f(e) }

// Result 一次寻宝活动的结果
type Result struct {
	RunID     string    `json:"run_id"`
	Outcome   Outcome   `json:"outcome"`
	Position  *Position `json:"position,omitempty"`
	Biome     string    `json:"biome,omitempty"`
	Item      string    `json:"item,omitempty"`
	Flavor    string    `json:"flavor,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Hunt 寻宝活动的流程
type Hunt struct {
	cmd       Commander
	world     *World
	announcer *Announcer
	narrator  Narrator
	sink      EventSink
	logger    *zap.Logger
	rng       *rand.Rand

	SkipOdds int // 每 SkipOdds+1 次运行一次，0 表示每次都运行
	Attempts int // 寻找位置的最大尝试次数

	// Sleep 可以在测试中替换，ctx取消时返回错误
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewHunt 创建寻宝活动，narrator为nil时使用 StaticNarrator
func NewHunt(cmd Commander, world *World, narrator Narrator, logger *zap.Logger) *Hunt {
	if narrator == nil {
		narrator = StaticNarrator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hunt{
		cmd:       cmd,
		world:     world,
		announcer: NewAnnouncer(cmd),
		narrator:  narrator,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		SkipOdds:  DefaultSkipOdds,
		Attempts:  DefaultAttempts,
		Sleep:     sleepContext,
	}
}

// SetSink 设置事件接收者
func (h *Hunt) SetSink(sink EventSink) { h.sink = sink }

// SetRand 设置随机数源
func (h *Hunt) SetRand(rng *rand.Rand) { h.rng = rng }

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HeightLabel 用于文案的高度描述
func HeightLabel(y int) string {
	switch {
	case y < -40:
		return "Close to bedrock"
	case y < 0:
		return "Deepslate level"
	case y < WaterLevel:
		return "Below ground"
	default:
		return "Above ground"
	}
}

// Approximate 把坐标四舍五入到16的倍数，恰好一半时取偶数倍
func Approximate(v int) int {
	return int(math.RoundToEven(float64(v)/roundTo)) * roundTo
}

type run struct {
	*Hunt
	result *Result
}

func (r *run) log(stage, msg string, pos *Position, fields ...zap.Field) {
	r.logger.Info(msg, append(fields, zap.String("run", r.result.RunID), zap.String("stage", stage))...)
	if r.sink != nil {
		r.sink.Publish(Event{RunID: r.result.RunID, Stage: stage, Message: msg, Position: pos, Time: time.Now()})
	}
}

func (r *run) announce(text, color string, bold bool) error {
	return r.announcer.Announce(Message{Text: text, Color: color, Bold: bold})
}

// Run 执行一次完整的寻宝活动
func (h *Hunt) Run(ctx context.Context) (*Result, error) {
	r := &run{Hunt: h, result: &Result{RunID: uuid.NewString(), StartedAt: time.Now()}}
	result, err := r.run(ctx)
	result.EndedAt = time.Now()
	if err != nil {
		h.logger.Error("寻宝活动出错", zap.String("run", result.RunID), zap.Error(err))
	}
	return result, err
}

func (r *run) run(ctx context.Context) (*Result, error) {
	if r.SkipOdds > 0 && r.rng.Intn(r.SkipOdds+1) != 0 {
		r.result.Outcome = OutcomeSkipped
		r.log(StageFinished, "Skipping treasure hunt", nil)
		return r.result, nil
	}

	players, err := r.onlinePlayers()
	if err != nil {
		return r.result, err
	}
	if len(players) == 0 {
		r.result.Outcome = OutcomeNoPlayers
		r.log(StageFinished, "No online players, exiting", nil)
		return r.result, nil
	}
	r.log(StageStarted, "Treasure hunt started", nil, zap.Strings("players", players))

	for attempt := 0; attempt < r.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return r.result, err
		}

		pos, err := r.world.FindSpot()
		if errors.Is(err, ErrNoSpot) {
			continue
		}
		if err != nil {
			return r.result, err
		}
		r.log(StageSpot, fmt.Sprintf("Found treasure spot at %s", pos), &pos)

		biome, err := r.world.DetectBiome(ctx, pos)
		if err != nil {
			return r.result, err
		}
		if biome == "" {
			r.log(StageSpot, "Could not detect biome, skipping", &pos)
			continue
		}
		if IsOcean(biome) && pos.Y > WaterLevel {
			r.log(StageSpot, "Treasure was on the ocean, skipping", &pos)
			continue
		}

		return r.result, r.hunt(ctx, pos, biome)
	}

	r.result.Outcome = OutcomeNoSpot
	r.log(StageFinished, "Could not find a treasure spot", nil)
	return r.result, nil
}

// onlinePlayers 无法识别的 list 响应视为没有玩家
func (r *run) onlinePlayers() ([]string, error) {
	output, err := r.cmd.ExecuteCommand("list")
	if err != nil {
		return nil, err
	}
	list, err := mcparse.ParsePlayerList(output)
	if err != nil {
		r.logger.Warn("无法解析玩家列表", zap.String("output", output))
		return nil, nil
	}
	return list.Names, nil
}

func (r *run) hunt(ctx context.Context, pos Position, biome string) error {
	item := Treasures[r.rng.Intn(len(Treasures))]
	r.result.Position = &pos
	r.result.Biome = biome
	r.result.Item = item

	clue := Clue{
		Biome:  biome,
		X:      Approximate(pos.X),
		Z:      Approximate(pos.Z),
		Height: HeightLabel(pos.Y),
		Item:   item,
	}
	flavor, err := r.narrator.Narrate(ctx, clue)
	if err != nil {
		r.logger.Warn("生成文案失败，使用固定模板", zap.Error(err))
		flavor, _ = StaticNarrator{}.Narrate(ctx, clue)
	}
	r.result.Flavor = flavor

	if err := r.world.PlaceTreasure(pos, item); err != nil {
		return err
	}
	r.log(StagePlaced, fmt.Sprintf("%s placed at %s in biome %s", item, pos, biome), &pos)

	if err := r.announce("TREASURE HUNT!", "green", true); err != nil {
		return err
	}
	if err := r.announce(flavor, "green", false); err != nil {
		return err
	}
	r.log(StagePlaced, "Flavor text: "+strings.ReplaceAll(flavor, "\n", " "), &pos)

	if err := r.Sleep(ctx, 10*time.Second); err != nil {
		return r.abort(pos, err)
	}
	if err := r.announce("Move quickly! The treasure chest (and all of its contents) will disappear in 10 minutes!", "red", false); err != nil {
		return err
	}
	r.log(StageWarning, "Countdown started", &pos)

	emptied := false
	for _, alert := range countdownTape {
		if err := r.Sleep(ctx, time.Minute); err != nil {
			return r.abort(pos, err)
		}

		gone, err := r.world.TreasureGone(pos)
		if err != nil {
			return err
		}
		if gone {
			emptied = true
			r.log(StageEmptied, "Treasure was acquired!", &pos)
			if err := r.announce("The treasure chest has been emptied!", "green", false); err != nil {
				return err
			}
			break
		}

		if alert == 0 {
			continue
		}
		unit := "minutes"
		if alert == 1 {
			unit = "minute"
		}
		if err := r.announce(fmt.Sprintf("The treasure chest will disappear in %d %s!", alert, unit), "red", false); err != nil {
			return err
		}
		r.log(StageCountdown, fmt.Sprintf("%d %s remaining", alert, unit), &pos)
	}
	if !emptied {
		if err := r.Sleep(ctx, time.Minute); err != nil {
			return r.abort(pos, err)
		}
	}

	if err := r.cleanup(pos); err != nil {
		return err
	}

	if emptied {
		r.result.Outcome = OutcomeEmptied
	} else {
		r.result.Outcome = OutcomeExpired
	}
	r.log(StageFinished, "Treasure hunt complete", &pos)
	return nil
}

// abort 活动被取消时仍然收回宝箱
func (r *run) abort(pos Position, cause error) error {
	r.result.Outcome = OutcomeCancelled
	if err := r.cleanup(pos); err != nil {
		r.logger.Warn("收回宝箱失败", zap.Error(err))
	}
	return cause
}

// cleanup 移除剩下的宝箱，只有宝箱里还有东西时才广播宝箱消失
func (r *run) cleanup(pos Position) error {
	chest, err := r.world.HasChest(pos)
	if err != nil {
		return err
	}
	if !chest {
		r.log(StageRemoved, "Treasure chest was already gone", &pos)
		return nil
	}

	gone, err := r.world.TreasureGone(pos)
	if err != nil {
		return err
	}
	if err := r.world.RemoveChest(pos); err != nil {
		return err
	}
	if !gone {
		if err := r.announce("The treasure chest vanishes back to the realm it came from!", "green", false); err != nil {
			return err
		}
	}
	r.log(StageRemoved, "Treasure chest disappeared", &pos)
	return nil
}
