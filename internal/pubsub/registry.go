package pubsub

// registry 频道到监听器集合的映射
//
// 频道存在当且仅当其监听器集合非空。非并发安全，由 Multiplexer.mu 保护。
type registry struct {
	entries map[ChannelKey]map[Listener]struct{}
}

func newRegistry() *registry {
	return &registry{entries: make(map[ChannelKey]map[Listener]struct{})}
}

// add 登记监听器，返回该频道是否为新增
func (r *registry) add(key ChannelKey, l Listener) bool {
	set, ok := r.entries[key]
	if !ok {
		set = make(map[Listener]struct{}, 1)
		r.entries[key] = set
	}
	set[l] = struct{}{}
	return !ok
}

// remove 从所有频道移除监听器
// 返回是否发生过移除，以及因此变空而被删除的频道
func (r *registry) remove(l Listener) (removed bool, emptied []ChannelKey) {
	for key, set := range r.entries {
		if _, ok := set[l]; !ok {
			continue
		}
		delete(set, l)
		removed = true
		if len(set) == 0 {
			delete(r.entries, key)
			emptied = append(emptied, key)
		}
	}
	return removed, emptied
}

// listeners 返回频道监听器的快照
func (r *registry) listeners(key ChannelKey) []Listener {
	set := r.entries[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	return out
}

// channels 返回物理订阅需要的频道列表，哨兵频道总在首位
func (r *registry) channels(sentinel string) []string {
	out := make([]string, 0, len(r.entries)+1)
	out = append(out, sentinel)
	for key := range r.entries {
		out = append(out, string(key))
	}
	return out
}

// snapshot 返回整张表的深拷贝
func (r *registry) snapshot() map[string][]Listener {
	out := make(map[string][]Listener, len(r.entries))
	for key := range r.entries {
		out[string(key)] = r.listeners(key)
	}
	return out
}

func (r *registry) len() int {
	return len(r.entries)
}

func (r *registry) clear() {
	r.entries = make(map[ChannelKey]map[Listener]struct{})
}
