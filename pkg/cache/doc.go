// Package cache 实现一个按时间分桶近似 LRU 的内存键值缓存。
//
// 缓存不维护完整的最近使用链表。每次 Get/Set 只会刷新条目的访问时间，
// 并把键记录到当前的"活动桶"中。清扫任务按固定间隔运行：
//
//   - 把活动桶归档到桶队列尾部，并开启新的活动桶；
//   - 配置了 MaxAge 时，从队列头部开始淘汰已过期的桶中仍然过期的条目；
//   - 配置了 MaxSize 时，若总大小超出上限，按归档顺序逐个删除最旧桶中的键，
//     直到回到预算之内或队列耗尽。
//
// 同一清扫间隔内被访问的条目在淘汰优先级上不可区分，这是用 O(1) 的访问记录
// 换取的精度损失。
//
// # 条目大小
//
// 每个条目的大小由 SizeFunc 计算，默认每个条目计为 1。更换 SizeFunc 时会
// 重新计算全部条目的大小。Size 只读，没有对应的写方法。
//
// # 配置
//
// 配置项采用"设置或忽略"语义：非法值（非正数、nil 函数）会被静默忽略，
// 保留原值；Set* 方法返回生效后的值，调用方可据此判断是否被接受。
//
// # 并发
//
// 所有方法都可以并发调用。存储、活动桶和桶队列由同一把互斥锁保护，
// 清扫任务运行在缓存自己拥有的后台 goroutine 中，Close 会停止它。
package cache
