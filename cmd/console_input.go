package cmd

// lineEditor 命令行输入缓冲，按rune编辑以支持中文输入
type lineEditor struct {
	buf    []rune
	cursor int // 光标在 buf 中的位置
	scroll int // 命令过长时的水平滚动偏移
}

func (e *lineEditor) String() string { return string(e.buf) }

// insert 在光标处插入字符
func (e *lineEditor) insert(r rune) {
	e.buf = append(e.buf, 0)
	copy(e.buf[e.cursor+1:], e.buf[e.cursor:])
	e.buf[e.cursor] = r
	e.cursor++
}

// backspace 删除光标前的字符
func (e *lineEditor) backspace() {
	if e.cursor == 0 {
		return
	}
	e.buf = append(e.buf[:e.cursor-1], e.buf[e.cursor:]...)
	e.cursor--
}

// move 左右移动光标，超出范围时停在两端
func (e *lineEditor) move(delta int) {
	e.cursor += delta
	if e.cursor < 0 {
		e.cursor = 0
	}
	if e.cursor > len(e.buf) {
		e.cursor = len(e.buf)
	}
}

// set 替换整行内容，光标移到末尾
func (e *lineEditor) set(s string) {
	e.buf = []rune(s)
	e.cursor = len(e.buf)
	e.scroll = 0
}

func (e *lineEditor) reset() { e.set("") }

// view 返回宽度为 width 的可见部分和光标在其中的列
func (e *lineEditor) view(width int) (string, int) {
	if width < 1 {
		width = 1
	}
	switch {
	case len(e.buf) < width:
		e.scroll = 0
	case e.cursor < e.scroll:
		e.scroll = e.cursor
	case e.cursor >= e.scroll+width:
		e.scroll = e.cursor - width + 1
	}

	end := e.scroll + width
	if end > len(e.buf) {
		end = len(e.buf)
	}
	return string(e.buf[e.scroll:end]), e.cursor - e.scroll
}

// history 命令历史，index 为 -1 时不在浏览历史
type history struct {
	items []string
	max   int
	index int
	draft string // 开始浏览前正在输入的命令
}

func newHistory(size int) *history {
	return &history{max: size, index: -1}
}

// add 记录一条命令，与上一条相同时不重复记录
func (h *history) add(cmd string) {
	h.index = -1
	if n := len(h.items); n > 0 && h.items[n-1] == cmd {
		return
	}
	h.items = append(h.items, cmd)
	if len(h.items) > h.max {
		h.items = h.items[len(h.items)-h.max:]
	}
}

// prev 向上浏览，current 为当前输入，没有历史时原样返回
func (h *history) prev(current string) string {
	if len(h.items) == 0 {
		return current
	}
	switch {
	case h.index == -1:
		h.draft = current
		h.index = len(h.items) - 1
	case h.index > 0:
		h.index--
	}
	return h.items[h.index]
}

// next 向下浏览，越过最新一条时回到浏览前的输入
func (h *history) next(current string) string {
	if h.index == -1 {
		return current
	}
	if h.index+1 >= len(h.items) {
		h.index = -1
		return h.draft
	}
	h.index++
	return h.items[h.index]
}
