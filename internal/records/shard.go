package records

// SplitIntoShards partitions jobs into consecutive slices of at most size
// elements, stamping each job with its shard index and position. A size
// smaller than 1 falls back to a single shard holding everything.
func SplitIntoShards(urls []string, size int) [][]Job {
	if size < 1 {
		size = len(urls)
		if size == 0 {
			return nil
		}
	}

	var shards [][]Job
	for start := 0; start < len(urls); start += size {
		end := start + size
		if end > len(urls) {
			end = len(urls)
		}
		shardIndex := len(shards)
		shard := make([]Job, 0, end-start)
		for pos, u := range urls[start:end] {
			shard = append(shard, Job{
				URL:             u,
				ShardIndex:      shardIndex,
				PositionInShard: pos,
			})
		}
		shards = append(shards, shard)
	}
	return shards
}
