package pubsub

// ChannelKey 频道标识
//
// 由字节序列复制得到，按内容比较，可直接作为 map 键
type ChannelKey string

// KeyOf 由字节序列构造频道标识（会复制一份）
func KeyOf(channel []byte) ChannelKey {
	return ChannelKey(channel)
}

// Bytes 返回频道名的副本
func (k ChannelKey) Bytes() []byte {
	return []byte(k)
}

// String 返回频道名
func (k ChannelKey) String() string {
	return string(k)
}
