package pipeline

// StyleProfile 在提交时一次性解析，贯穿分类、评分与渲染阶段。
// 避免各阶段各自查表。
type StyleProfile struct {
	Name            string
	PreferredLabels []string // 平局带内优先的动作标签
	Character       CharacterStyle
}

// CharacterStyle 渲染用角色配色
type CharacterStyle struct {
	Body   [3]uint8
	Pants  [3]uint8
	Board  [3]uint8
	Helmet [3]uint8
	Sky    [3]uint8
	Snow   [3]uint8
}

var styleProfiles = map[string]StyleProfile{
	"default": {
		Name: "default",
		Character: CharacterStyle{
			Body:   [3]uint8{70, 130, 220},
			Pants:  [3]uint8{50, 50, 60},
			Board:  [3]uint8{220, 50, 50},
			Helmet: [3]uint8{255, 255, 255},
			Sky:    [3]uint8{200, 230, 255},
			Snow:   [3]uint8{240, 245, 255},
		},
	},
	"park": {
		Name:            "park",
		PreferredLabels: []string{"grab_indy", "grab_mute", "jump_360", "jump_180"},
		Character: CharacterStyle{
			Body:   [3]uint8{0, 255, 128},
			Pants:  [3]uint8{30, 30, 40},
			Board:  [3]uint8{255, 0, 255},
			Helmet: [3]uint8{0, 200, 255},
			Sky:    [3]uint8{20, 20, 40},
			Snow:   [3]uint8{40, 40, 60},
		},
	},
	"carve": {
		Name:            "carve",
		PreferredLabels: []string{"carving", "butter"},
		Character: CharacterStyle{
			Body:   [3]uint8{200, 100, 50},
			Pants:  [3]uint8{80, 60, 40},
			Board:  [3]uint8{60, 120, 60},
			Helmet: [3]uint8{220, 200, 170},
			Sky:    [3]uint8{180, 210, 230},
			Snow:   [3]uint8{230, 235, 240},
		},
	},
}

// ResolveStyle 按名称解析风格，未知名称回落到 default
func ResolveStyle(name string) StyleProfile {
	if p, ok := styleProfiles[name]; ok {
		return p
	}
	return styleProfiles["default"]
}

func (p StyleProfile) prefers(label string) bool {
	for _, l := range p.PreferredLabels {
		if l == label {
			return true
		}
	}
	return false
}
