package treasure

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServer 模拟一个只有地面高度、群系和一个宝箱的世界
type fakeServer struct {
	players   string
	groundY   int    // 这个高度及以下是实心方块
	biome     string // 所有位置都是这个群系
	unloaded  bool
	emptyAt   int // 第几次检查宝箱是否为空时玩家取走了宝物，0表示不会
	biomeJunk map[string]bool

	chest      bool
	chestEmpty bool
	emptyTests int

	commands []string
	tellraws []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		players: "There are 2 of a max of 20 players online: Alice, Bob",
		groundY: 40,
		biome:   "plains",
	}
}

func (f *fakeServer) ExecuteCommand(cmd string) (string, error) {
	f.commands = append(f.commands, cmd)

	var x, y, z int
	switch {
	case cmd == "list":
		return f.players, nil

	case strings.HasPrefix(cmd, "execute if block "):
		if f.unloaded {
			return "That position is not loaded", nil
		}
		var block string
		if _, err := fmt.Sscanf(cmd, "execute if block %d %d %d %s", &x, &y, &z, &block); err != nil {
			return "", err
		}
		var ok bool
		switch block {
		case "minecraft:air":
			ok = y > f.groundY && !(f.chest && y == f.groundY+1)
		case "minecraft:chest":
			ok = f.chest
		case "minecraft:chest{Items:[]}":
			f.emptyTests++
			if f.emptyAt > 0 && f.emptyTests >= f.emptyAt {
				f.chestEmpty = true
			}
			ok = f.chest && f.chestEmpty
		default:
			return "Unknown block", nil
		}
		if ok {
			return "Test passed", nil
		}
		return "Test failed", nil

	case strings.HasPrefix(cmd, "execute positioned "):
		idx := strings.LastIndex(cmd, "minecraft:")
		biome := cmd[idx+len("minecraft:"):]
		if f.biomeJunk[biome] {
			return "An unexpected error occurred", nil
		}
		if biome == f.biome {
			return fmt.Sprintf("The nearest minecraft:%s is at [0, ~, 0] (0 blocks away)", biome), nil
		}
		return fmt.Sprintf("The nearest minecraft:%s is at [500, ~, 500] (707 blocks away)", biome), nil

	case strings.HasPrefix(cmd, "setblock "):
		if strings.HasSuffix(cmd, "minecraft:air") {
			f.chest = false
		} else {
			f.chest = true
			f.chestEmpty = false
		}
		return "Changed the block", nil

	case strings.HasPrefix(cmd, "tellraw @a "):
		f.tellraws = append(f.tellraws, strings.TrimPrefix(cmd, "tellraw @a "))
		return "", nil
	}
	return "Unknown command", nil
}

func newTestHunt(t *testing.T, srv *fakeServer) (*Hunt, *[]time.Duration) {
	t.Helper()
	world := NewWorld(srv, WithProbeInterval(0), WithRand(rand.New(rand.NewSource(1))))
	hunt := NewHunt(srv, world, nil, nil)
	hunt.SkipOdds = 0
	hunt.SetRand(rand.New(rand.NewSource(2)))

	var sleeps []time.Duration
	hunt.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	require.NotNil(t, hunt)
	return hunt, &sleeps
}
