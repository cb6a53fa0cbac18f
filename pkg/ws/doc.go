// Package ws 提供基于房间的 WebSocket 广播中继。
//
// # 组成
//
//   - Registry：房间到成员的映射，首个成员加入时创建房间，最后一个成员离开时删除
//   - Relay：对房间成员快照逐个投递，单个接收方失败不影响其他接收方
//   - Hub / Session：握手、会话生命周期、消息打标与断开通知
//   - Bus：可选的跨实例总线（Redis、RabbitMQ、Kafka），BreakerBus 为其增加熔断
//
// # 基本用法
//
//	hub, err := ws.NewHub(
//	    ws.WithMaxConnections(10000),
//	    ws.WithCheckOriginWhitelist([]string{"http://localhost:4321"}),
//	    ws.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//	hub.Start()
//
//	r.GET("/ws/:client_id", func(c *gin.Context) {
//	    _ = hub.ServeWS(c.Writer, c.Request, c.Param("client_id"), c.Query("page"))
//	})
//
//	// 服务端推送（sender 为 nil 时投递给全部成员）
//	hub.Relay().Broadcast(ctx, ws.Message{"type": "review.updated"}, "/reviews/42", nil)
//
//	// 优雅关闭
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	_ = hub.Shutdown(ctx)
//
// # 消息
//
// 客户端发送的每一帧必须是 JSON 对象文本帧。服务端写入（覆盖）"id" 字段为发送方的
// client_id 后转发给同房间其他成员。非法帧按 MalformedPolicy 处理：PolicyClose（默认）
// 关闭会话，PolicyDrop 丢弃该帧。
//
// 会话结束时向剩余成员广播：
//
//	{"id": "<client_id>", "type": "disconnect"}
package ws
