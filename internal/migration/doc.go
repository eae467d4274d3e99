// 版权所有 2026 AgentMem Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 提供数据库 Schema 迁移管理能力，支持 PostgreSQL、
MySQL 与 SQLite 三种数据库，基于 golang-migrate 实现。

# 概述

本包通过 embed.FS 内嵌各数据库方言的 SQL 迁移文件（§4.2/§4.9 的
用户/智能体/记忆表与五种记忆类型专属表、合并历史、路由与学习反馈
表），结合 golang-migrate 引擎实现版本化的正向 Schema 变更管理。
Down 仅用于测试拆卸与本地 Schema 迭代，不是生产回滚工具——命令行
迁移工具本身不在本仓库范围内（规范 §1 非目标：CLI 脚手架），由
调用方（例如一个独立的运维二进制）包装 Migrator 接口自行提供。

# 核心接口与类型

  - Migrator：迁移器接口，定义 Up/Down/Version/Status/Info/Close。
  - DefaultMigrator：Migrator 的默认实现，封装 golang-migrate 实例
    与数据库连接管理。
  - Config：迁移配置，包含数据库类型、连接 URL、迁移表名与锁超时。
  - DatabaseType：数据库类型枚举（postgres/mysql/sqlite）。
  - MigrationStatus / MigrationInfo：迁移状态与摘要信息。

# 主要能力

  - 多数据库支持：通过 DatabaseType 与内嵌 SQL 文件自动适配方言。
  - 工厂函数（factory.go）：NewMigratorFromConfig /
    NewMigratorFromDatabaseConfig 从 config.Config /
    config.DatabaseConfig 推导方言与连接串，与
    storage.dialectFor 保持一致的 embedded/server 推断规则；
    NewMigratorFromURL 供已知方言+URL 的调用方直接构造。
  - 辅助工具：ParseDatabaseType 解析类型字符串，BuildDatabaseURL
    按方言拼接连接 URL。
*/
package migration
