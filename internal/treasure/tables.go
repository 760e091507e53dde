package treasure

import "strings"

// Biomes 用于定位的群系，海洋群系在前，常见群系其次
var Biomes = []string{
	// 海洋
	"cold_ocean",
	"deep_cold_ocean",
	"deep_frozen_ocean",
	"deep_lukewarm_ocean",
	"deep_ocean",
	"frozen_ocean",
	"lukewarm_ocean",
	"ocean",
	"warm_ocean",
	// 常见
	"plains",
	"forest",
	"desert",
	"savanna",
	"taiga",
	"swamp",
	"river",
	"jungle",
	// 其他
	"badlands",
	"bamboo_jungle",
	"beach",
	"birch_forest",
	"cherry_grove",
	"dark_forest",
	"deep_dark",
	"dripstone_caves",
	"eroded_badlands",
	"flower_forest",
	"frozen_peaks",
	"frozen_river",
	"grove",
	"ice_spikes",
	"jagged_peaks",
	"lush_caves",
	"mangrove_swamp",
	"meadow",
	"mushroom_fields",
	"old_growth_birch_forest",
	"old_growth_pine_taiga",
	"old_growth_spruce_taiga",
	"savanna_plateau",
	"snowy_beach",
	"snowy_plains",
	"snowy_slopes",
	"snowy_taiga",
	"sparse_jungle",
	"stony_peaks",
	"stony_shore",
	"sunflower_plains",
	"windswept_forest",
	"windswept_gravelly_hills",
	"windswept_hills",
	"windswept_savanna",
	"wooded_badlands",
}

// Treasures 宝箱内容，一半是鞘翅，一半是下界合金物品
var Treasures = []string{
	"elytra",
	"elytra",
	"elytra",
	"elytra",
	"elytra",
	"elytra",
	"elytra",
	"elytra",
	"elytra",
	"elytra",
	"netherite_ingot",
	"netherite_sword",
	"netherite_pickaxe",
	"netherite_axe",
	"netherite_shovel",
	"netherite_hoe",
	"netherite_helmet",
	"netherite_chestplate",
	"netherite_leggings",
	"netherite_boots",
}

// IsOcean 是否为海洋群系
func IsOcean(biome string) bool {
	return strings.Contains(biome, "ocean")
}

// humanize 把 snake_case 的ID转换成空格分隔的名字
func humanize(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}
