package monitor

// 便捷函数供外部调用，无需访问 Metrics 实例

func SetWebSocketConnected(connected bool) {
	GetMetrics().SetWebSocketConnected(connected)
}

func SetConnectionState(state int) {
	GetMetrics().SetConnectionState(state)
}

func IncConnectionError(op string) {
	GetMetrics().IncConnectionError(op)
}

func IncFramesReceived() {
	GetMetrics().IncFramesReceived()
}

func IncMessagesReceived(msgType string) {
	GetMetrics().IncMessagesReceived(msgType)
}

func IncProtocolError() {
	GetMetrics().IncProtocolError()
}

func AddRecordsDispatched(recordType string, n int) {
	GetMetrics().AddRecordsDispatched(recordType, n)
}

func IncListenerError(event string) {
	GetMetrics().IncListenerError(event)
}

// SetSubscriptionCount 设置当前订阅数
func SetSubscriptionCount(count int) {
	GetMetrics().SetSubscriptionCount(count)
}

// SetBufferSizeHint 设置接收缓冲区大小估算
func SetBufferSizeHint(bytes int) {
	GetMetrics().SetBufferSizeHint(bytes)
}

// SetMessageQueueSize 设置消息队列大小
func SetMessageQueueSize(size int) {
	GetMetrics().SetMessageQueueSize(size)
}

func SetNATSConnected(connected bool) {
	GetMetrics().SetNATSConnected(connected)
}

func IncNATSPublished(recordType, status string) {
	GetMetrics().IncNATSPublished(recordType, status)
}

// IncCacheHit 增加缓存命中计数
func IncCacheHit(cacheType string) {
	GetMetrics().IncCacheHit(cacheType)
}

// IncCacheMiss 增加缓存未命中计数
func IncCacheMiss(cacheType string) {
	GetMetrics().IncCacheMiss(cacheType)
}
