package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE graphs (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255),
				description TEXT,
				start_node VARCHAR(255) NOT NULL,
				edges JSONB NOT NULL DEFAULT '{}',
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_graphs_created_at ON graphs(created_at);

			CREATE TABLE runs (
				id VARCHAR(255) PRIMARY KEY,
				graph_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'completed', 'failed')),
				current_node VARCHAR(255),
				state JSONB NOT NULL DEFAULT '{}',
				trace JSONB NOT NULL DEFAULT '[]',
				steps INTEGER NOT NULL DEFAULT 0,
				error TEXT,
				error_node VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_runs_graph_id ON runs(graph_id);
			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_created_at ON runs(created_at);
		`,
	}
}
