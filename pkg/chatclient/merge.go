package chatclient

import (
	"slices"
)

// Merge 以 id 合併拉取與推送得到的訊息，依 (CreatedAt, ID) 排序。
// 同一個 id 出現多次時以後面的為準。
func Merge(pulled, pushed []Message) []Message {
	index := make(map[uint]int, len(pulled)+len(pushed))
	out := make([]Message, 0, len(pulled)+len(pushed))

	for _, batch := range [][]Message{pulled, pushed} {
		for _, m := range batch {
			if i, ok := index[m.ID]; ok {
				out[i] = m
				continue
			}
			index[m.ID] = len(out)
			out = append(out, m)
		}
	}

	slices.SortFunc(out, compareMessages)
	return out
}

func compareMessages(a, b Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// without 移除指定 id 的訊息
func without(messages []Message, id uint) []Message {
	return slices.DeleteFunc(messages, func(m Message) bool { return m.ID == id })
}
